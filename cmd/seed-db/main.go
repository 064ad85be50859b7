package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/grocery-backoffice/db"
	"github.com/xenking/grocery-backoffice/internal/domain/order"
	"github.com/xenking/grocery-backoffice/internal/domain/product"
	"github.com/xenking/grocery-backoffice/internal/storage/postgres"
)

const insertConcurrency = 4

type productJSON struct {
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
}

type sampleLine struct {
	product  string
	quantity int
}

type sampleOrder struct {
	req    order.CreateRequest
	lines  []sampleLine
	status order.Status
}

var sampleOrders = []sampleOrder{
	{
		req: order.CreateRequest{
			CustomerName:    "John Doe",
			CustomerPhone:   "+1234567890",
			CustomerAddress: "123 Main St, City, State 12345",
		},
		lines:  []sampleLine{{"Apple", 5}, {"Milk", 2}, {"Bread", 3}},
		status: order.StatusPending,
	},
	{
		req: order.CreateRequest{
			CustomerName:    "Jane Smith",
			CustomerPhone:   "+0987654321",
			CustomerAddress: "456 Oak Ave, City, State 67890",
		},
		lines:  []sampleLine{{"Carrot", 10}, {"Tomato", 6}},
		status: order.StatusShipped,
	},
	{
		req: order.CreateRequest{
			CustomerName:    "Bob Johnson",
			CustomerPhone:   "+1112223333",
			CustomerAddress: "789 Pine Rd, City, State 54321",
		},
		lines:  []sampleLine{{"Chicken Breast", 2}, {"Orange Juice", 4}},
		status: order.StatusDelivered,
	},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		keep         bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to a products JSON file, optionally .gz (embedded catalog when empty)")
	flag.BoolVar(&keep, "keep", false, "keep existing products and orders")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile, keep); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string, keep bool) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	store := postgres.New(pool)
	if !keep {
		lg.Info("Clearing existing data")
		if err := store.Reset(ctx); err != nil {
			return errors.Wrap(err, "reset")
		}
	}

	catalog, err := readCatalog(productsFile)
	if err != nil {
		return err
	}
	byName, err := seedProducts(ctx, lg, product.NewService(store.Products()), catalog)
	if err != nil {
		return errors.Wrap(err, "seed products")
	}

	orders := order.NewService(store, order.WithLogger(lg.Named("order")))
	if err := seedOrders(ctx, lg, orders, byName); err != nil {
		return errors.Wrap(err, "seed orders")
	}
	return nil
}

func readCatalog(path string) ([]productJSON, error) {
	var r io.Reader = bytes.NewReader(db.Products)
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open products file")
		}
		defer func() { _ = f.Close() }()
		r = f

		if filepath.Ext(path) == ".gz" {
			gz, err := pgzip.NewReader(f)
			if err != nil {
				return nil, errors.Wrapf(err, "create gzip reader for %s", path)
			}
			defer func() { _ = gz.Close() }()
			r = gz
		}
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}

// seedProducts inserts the catalog and returns the created ids by name.
func seedProducts(ctx context.Context, lg *zap.Logger, svc *product.Service, catalog []productJSON) (map[string]string, error) {
	lg.Info("Inserting products", zap.Int("count", len(catalog)))

	var (
		mu     sync.Mutex
		byName = make(map[string]string, len(catalog))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(insertConcurrency)
	for _, item := range catalog {
		g.Go(func() error {
			p, err := svc.Create(ctx, product.Input{
				Name:          item.Name,
				Category:      product.Category(item.Category),
				Price:         item.Price,
				StockQuantity: item.StockQuantity,
			})
			if err != nil {
				return errors.Wrapf(err, "create product %q", item.Name)
			}
			mu.Lock()
			byName[p.Name] = p.ID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return byName, nil
}

// seedOrders places the sample orders through the order service, so stock is
// reserved the same way live orders reserve it, then moves each one to its
// sample status.
func seedOrders(ctx context.Context, lg *zap.Logger, svc *order.Service, byName map[string]string) error {
	for _, sample := range sampleOrders {
		req := sample.req
		for _, line := range sample.lines {
			id, ok := byName[line.product]
			if !ok {
				lg.Warn("Sample order references a product missing from the catalog",
					zap.String("customer", req.CustomerName),
					zap.String("product", line.product),
				)
				continue
			}
			req.Items = append(req.Items, order.Line{ProductID: id, Quantity: line.quantity})
		}
		if len(req.Items) == 0 {
			continue
		}

		v, err := svc.CreateOrder(ctx, req)
		if err != nil {
			return errors.Wrapf(err, "create order for %s", req.CustomerName)
		}
		if sample.status != order.StatusPending {
			if _, err := svc.UpdateStatus(ctx, v.Order.ID, sample.status); err != nil {
				return errors.Wrapf(err, "move order %s to %s", v.Order.ID, sample.status)
			}
		}
		lg.Info("Inserted order",
			zap.String("id", v.Order.ID),
			zap.String("customer", req.CustomerName),
			zap.String("status", string(sample.status)),
			zap.String("total", v.Order.TotalPrice.StringFixed(2)),
		)
	}
	return nil
}
