package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/ogen-go/ogen/validate"
	"github.com/shopspring/decimal"

	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// maxExponent bounds the decimal exponent accepted in request numbers.
const maxExponent = 20

func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	body(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeData writes {"success":true,"data":...}.
func writeData(w http.ResponseWriter, status int, data func(e *jx.Encoder)) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("data", data)
		})
	})
}

// writeList writes {"success":true,"count":n,"data":[...]}.
func writeList(w http.ResponseWriter, n int, item func(e *jx.Encoder, i int)) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(true) })
			e.Field("count", func(e *jx.Encoder) { e.Int(n) })
			e.Field("data", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range n {
						item(e, i)
					}
				})
			})
		})
	})
}

// writeMessage writes {"success":ok,"message":msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(status < http.StatusBadRequest) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func writeValidation(w http.ResponseWriter, verr *validate.Error) {
	writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
			e.Field("message", func(e *jx.Encoder) { e.Str("Validation errors") })
			e.Field("errors", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, f := range verr.Fields {
						e.Obj(func(e *jx.Encoder) {
							e.Field("field", func(e *jx.Encoder) { e.Str(f.Name) })
							e.Field("message", func(e *jx.Encoder) { e.Str(f.Error.Error()) })
						})
					}
				})
			})
		})
	})
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Float64(d.InexactFloat64())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(timeLayout))
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(string(p.Category)) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("stockQuantity", func(e *jx.Encoder) { e.Int(p.StockQuantity) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, p.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, p.UpdatedAt) })
	})
}

// encodeOrder writes an order with every line item joined to the current
// product summary, or null when the product is gone. Single-order views also
// expose the product's stock on hand.
func encodeOrder(e *jx.Encoder, v order.View, withStock bool) {
	o := v.Order
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("customerName", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("customerPhone", func(e *jx.Encoder) { e.Str(o.CustomerPhone) })
		e.Field("customerAddress", func(e *jx.Encoder) { e.Str(o.CustomerAddress) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					encodeItem(e, item, v, withStock)
				}
			})
		})
		e.Field("totalPrice", func(e *jx.Encoder) { encodeDecimal(e, o.TotalPrice) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("createdAt", func(e *jx.Encoder) { encodeTime(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { encodeTime(e, o.UpdatedAt) })
	})
}

func encodeItem(e *jx.Encoder, item order.Item, v order.View, withStock bool) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(item.ProductID) })
		e.Field("product", func(e *jx.Encoder) {
			p, ok := v.Product(item.ProductID)
			if !ok {
				e.Null()
				return
			}
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
				e.Field("category", func(e *jx.Encoder) { e.Str(string(p.Category)) })
				e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
				if withStock {
					e.Field("stockQuantity", func(e *jx.Encoder) { e.Int(p.StockQuantity) })
				}
			})
		})
		e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, item.Price) })
	})
}

// --- Decoding ---

// field is a decoded scalar: whether the key was present with a non-null
// value, and whether that value had an acceptable JSON type.
type field struct {
	set   bool
	valid bool
}

func readString(d *jx.Decoder) (string, field, error) {
	switch d.Next() {
	case jx.Null:
		return "", field{}, d.Null()
	case jx.String:
		s, err := d.Str()
		return s, field{set: true, valid: true}, err
	default:
		return "", field{set: true}, d.Skip()
	}
}

// readDecimal accepts JSON numbers and numeric strings. Values written with
// an exponent beyond maxExponent in either direction are rejected.
func readDecimal(d *jx.Decoder) (decimal.Decimal, field, error) {
	var raw string
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, field{}, d.Null()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, field{set: true}, err
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, field{set: true}, err
		}
		raw = s
	default:
		return decimal.Zero, field{set: true}, d.Skip()
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.Exponent() > maxExponent || v.Exponent() < -maxExponent {
		return decimal.Zero, field{set: true}, nil
	}
	return v, field{set: true, valid: true}, nil
}

// readInt is readDecimal restricted to integral values that fit an int32.
func readInt(d *jx.Decoder) (int, field, error) {
	v, f, err := readDecimal(d)
	if err != nil || !f.valid {
		return 0, f, err
	}
	if !v.IsInteger() || v.Abs().GreaterThan(decimal.NewFromInt(1<<31-1)) {
		return 0, field{set: true}, nil
	}
	return int(v.IntPart()), f, nil
}

type productBody struct {
	Name, Category       string
	NameSet, CategorySet field
	Price                decimal.Decimal
	PriceSet             field
	Stock                int
	StockSet             field
}

func decodeProduct(data []byte) (productBody, error) {
	var b productBody
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			b.Name, b.NameSet, err = readString(d)
		case "category":
			b.Category, b.CategorySet, err = readString(d)
		case "price":
			b.Price, b.PriceSet, err = readDecimal(d)
		case "stockQuantity":
			b.Stock, b.StockSet, err = readInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

type itemBody struct {
	ProductID   string
	ProductSet  field
	Quantity    int
	QuantitySet field
}

type orderBody struct {
	CustomerName, CustomerPhone, CustomerAddress string
	ItemsSet                                     field
	Items                                        []itemBody
}

func decodeOrder(data []byte) (orderBody, error) {
	var b orderBody
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerName":
			b.CustomerName, _, err = readString(d)
		case "customerPhone":
			b.CustomerPhone, _, err = readString(d)
		case "customerAddress":
			b.CustomerAddress, _, err = readString(d)
		case "items":
			if d.Next() != jx.Array {
				b.ItemsSet = field{set: true}
				return d.Skip()
			}
			b.ItemsSet = field{set: true, valid: true}
			err = d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				b.Items = append(b.Items, item)
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return b, err
}

func decodeItem(d *jx.Decoder) (itemBody, error) {
	var item itemBody
	if d.Next() != jx.Object {
		return item, d.Skip()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product", "productId":
			var id string
			var f field
			id, f, err = readString(d)
			if f.set {
				item.ProductID, item.ProductSet = id, f
			}
		case "quantity":
			item.Quantity, item.QuantitySet, err = readInt(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return item, err
}

func decodeStatus(data []byte) (string, error) {
	var status string
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "status" {
			return d.Skip()
		}
		var err error
		status, _, err = readString(d)
		return err
	})
	return status, err
}
