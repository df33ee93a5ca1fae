package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"sales-service/config"
	"sales-service/internal/models"
	"sales-service/internal/redisclient"
	"sales-service/internal/service"
	"sales-service/internal/store"
	"sales-service/internal/util"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "salesctl",
		Usage: "operate the sales service database and stock cache",
		Before: func(c *cli.Context) error {
			cfg := config.Load()
			return util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel)
		},
		After: func(c *cli.Context) error {
			util.SyncLogger()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "apply database migrations",
				Action: migrateAction,
			},
			{
				Name:   "sync-stock",
				Usage:  "reload every stock level into Redis",
				Action: syncStockAction,
			},
			{
				Name:  "restock",
				Usage: "add stock to a product",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "product", Aliases: []string{"p"}, Required: true},
					&cli.IntFlag{Name: "qty", Aliases: []string{"q"}, Required: true},
				},
				Action: restockAction,
			},
			{
				Name:   "low-stock",
				Usage:  "list products under the low-stock threshold",
				Action: lowStockAction,
			},
			{
				Name:  "checkout",
				Usage: "sell a cart priced at current catalog prices",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "customer", Required: true},
					&cli.Int64Flag{Name: "seller", Required: true},
					&cli.StringFlag{Name: "method", Value: string(models.PaymentCash)},
					&cli.StringSliceFlag{Name: "item", Usage: "product_id:quantity, repeatable", Required: true},
					&cli.StringFlag{Name: "key", Usage: "idempotency key"},
				},
				Action: checkoutAction,
			},
		},
	}
}

type deps struct {
	cfg   *config.Config
	db    *store.Store
	redis *redisclient.Client
}

func connect(withRedis bool) (*deps, error) {
	cfg := config.Load()

	db, err := store.NewStore(cfg.Database.URL, 2)
	if err != nil {
		return nil, err
	}
	db.SetLockTimeout(cfg.Checkout.LockTimeout)

	d := &deps{cfg: cfg, db: db}
	if withRedis {
		d.redis, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *deps) close() {
	if d.redis != nil {
		d.redis.Close()
	}
	d.db.Close()
}

func (d *deps) stockService() *service.StockService {
	var cache service.StockCache
	if d.redis != nil {
		cache = d.redis
	}
	return service.NewStockService(d.db, cache, d.cfg.Redis.StockCacheTTL, d.cfg.Checkout.LowStockThreshold)
}

func migrateAction(c *cli.Context) error {
	cfg := config.Load()
	if err := store.Migrate(cfg.Database.URL); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "migrations applied")
	return nil
}

func syncStockAction(c *cli.Context) error {
	d, err := connect(true)
	if err != nil {
		return err
	}
	defer d.close()

	return d.stockService().SyncStockToRedis(c.Context)
}

func restockAction(c *cli.Context) error {
	d, err := connect(true)
	if err != nil {
		return err
	}
	defer d.close()

	movement, err := d.stockService().Restock(c.Context, c.Int64("product"), c.Int("qty"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "product %d: %d -> %d\n", movement.ProductID, movement.PreviousQty, movement.NewQty)
	return nil
}

func lowStockAction(c *cli.Context) error {
	d, err := connect(false)
	if err != nil {
		return err
	}
	defer d.close()

	levels, err := d.stockService().LowStock(c.Context)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRODUCT\tQTY")
	for _, l := range levels {
		fmt.Fprintf(w, "%d\t%s\t%d\n", l.ProductID, l.ProductName, l.Quantity)
	}
	return w.Flush()
}

func checkoutAction(c *cli.Context) error {
	d, err := connect(true)
	if err != nil {
		return err
	}
	defer d.close()

	catalog := service.NewCatalogService(d.db)
	cart := service.NewCart()
	for _, raw := range c.StringSlice("item") {
		productID, qty, err := parseItem(raw)
		if err != nil {
			return err
		}
		if err := cart.AddProduct(c.Context, catalog, productID, qty); err != nil {
			return err
		}
	}

	checkout := service.NewCheckoutService(d.db, d.redis, service.CheckoutOptions{
		AttemptTimeout: d.cfg.Checkout.AttemptTimeout,
		MaxAttempts:    d.cfg.Checkout.MaxAttempts,
		IdempotencyTTL: d.cfg.Checkout.IdempotencyTTL,
		Topic:          d.cfg.Kafka.TopicSale,
	})

	result, err := cart.Checkout(c.Context, checkout, service.CheckoutRequest{
		CustomerID:     c.Int64("customer"),
		SellerID:       c.Int64("seller"),
		PaymentMethod:  models.PaymentMethod(c.String("method")),
		IdempotencyKey: c.String("key"),
	})
	if err != nil {
		return err
	}

	util.GetLogger().Debug("Checkout from CLI", zap.Int64("sale_id", result.SaleID))
	fmt.Fprintf(c.App.Writer, "sale %d: gross %s, discount %s, net %s (%s)\n",
		result.SaleID,
		result.Gross.StringFixed(2),
		result.Discount.StringFixed(2),
		result.Net.StringFixed(2),
		result.PaymentStatus)
	return nil
}

// parseItem reads "product_id:quantity"
func parseItem(raw string) (int64, int, error) {
	id, qty, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, 0, fmt.Errorf("item %q: want product_id:quantity", raw)
	}
	productID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("item %q: bad product id: %w", raw, err)
	}
	quantity, err := strconv.Atoi(qty)
	if err != nil {
		return 0, 0, fmt.Errorf("item %q: bad quantity: %w", raw, err)
	}
	return productID, quantity, nil
}
