package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/imrishuroy/digital-marketplace/internal/auth"
	"github.com/imrishuroy/digital-marketplace/internal/cart"
	"github.com/imrishuroy/digital-marketplace/internal/client"
	"github.com/imrishuroy/digital-marketplace/internal/poller"
)

const requestTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "shopper",
		Usage: "Browse, check out and wait for digital marketplace orders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   client.DefaultConfigPath(),
			},
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Marketplace API base URL (overrides config)",
				EnvVars: []string{"MARKETPLACE_API_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token (overrides config)",
				EnvVars: []string{"MARKETPLACE_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Store the API URL and token in the config file",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := client.SaveConfig(c.String("config"), cfg); err != nil {
						return err
					}
					fmt.Printf("saved %s\n", c.String("config"))
					return nil
				},
			},
			{
				Name:  "dev-token",
				Usage: "Sign a bearer token with the API's JWT secret for local development",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "JWT secret shared with the API",
						EnvVars:  []string{"JWT_SECRET"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "user",
						Usage:    "User id (token subject)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "email",
						Usage: "User email",
					},
					&cli.BoolFlag{
						Name:  "admin",
						Usage: "Grant the admin role",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: 24 * time.Hour,
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Store the token in the config file instead of printing it",
					},
				},
				Action: devToken,
			},
			{
				Name:  "cart",
				Usage: "Manage the local cart",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Add a product to the cart",
						ArgsUsage: "<productId>",
						Action:    cartAdd,
					},
					{
						Name:      "remove",
						Aliases:   []string{"rm"},
						Usage:     "Remove a product from the cart",
						ArgsUsage: "<productId>",
						Action:    cartRemove,
					},
					{
						Name:    "list",
						Aliases: []string{"ls"},
						Usage:   "Show the cart",
						Action:  cartList,
					},
					{
						Name:   "clear",
						Usage:  "Empty the cart",
						Action: cartClear,
					},
				},
			},
			{
				Name:  "checkout",
				Usage: "Start a checkout for the cart and print the payment URL",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "wait",
						Aliases: []string{"w"},
						Usage:   "Wait for the payment after printing the URL",
					},
				},
				Action: checkout,
			},
			{
				Name:      "wait",
				Usage:     "Poll an order until it is paid",
				ArgsUsage: "<orderId>",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Time between status checks",
						Value: poller.DefaultInterval,
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: shopper wait <orderId>", 2)
					}
					return wait(c, c.Args().First())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func devToken(c *cli.Context) error {
	tok, err := issueDevToken(c.String("secret"), auth.Identity{
		UserID: c.String("user"),
		Email:  c.String("email"),
		Admin:  c.Bool("admin"),
	}, c.Duration("ttl"))
	if err != nil {
		return err
	}
	if !c.Bool("save") {
		fmt.Println(tok)
		return nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg.Token = tok
	if err := client.SaveConfig(c.String("config"), cfg); err != nil {
		return err
	}
	fmt.Printf("token for %s saved to %s\n", c.String("user"), c.String("config"))
	return nil
}

func issueDevToken(secret string, id auth.Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	return auth.NewVerifier(secret, "").Issue(id, ttl)
}

// session bundles what every command needs.
type session struct {
	cfg  client.Config
	api  *client.Client
	cart *cart.Store
}

func loadConfig(c *cli.Context) (client.Config, error) {
	cfg, err := client.LoadConfig(c.String("config"))
	if err != nil {
		return client.Config{}, err
	}
	if v := c.String("api-url"); v != "" {
		cfg.APIURL = v
	}
	if v := c.String("token"); v != "" {
		cfg.Token = v
	}
	return cfg, nil
}

func openSession(c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	store := cart.New()
	if err := store.Load(cfg.CartPath); err != nil {
		return nil, err
	}
	store.Subscribe(func(items []cart.Item) {
		fmt.Printf("cart: %d item(s)\n", len(items))
	})
	return &session{
		cfg:  cfg,
		api:  client.New(cfg.APIURL, cfg.Token, requestTimeout),
		cart: store,
	}, nil
}

func (s *session) saveCart() error {
	return s.cart.Save(s.cfg.CartPath)
}

func cartAdd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: shopper cart add <productId>", 2)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	p, err := s.api.Product(c.Context, c.Args().First())
	if errors.Is(err, client.ErrNotFound) {
		return cli.Exit("product not found or not for sale", 1)
	}
	if err != nil {
		return err
	}
	if !s.cart.Add(cart.Item{ProductID: p.ProductID, Name: p.Name, Price: p.Price}) {
		fmt.Printf("%s is already in the cart\n", p.Name)
		return nil
	}
	if err := s.saveCart(); err != nil {
		return err
	}
	fmt.Printf("added %s (%s)\n", p.Name, p.Price)
	return nil
}

func cartRemove(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: shopper cart remove <productId>", 2)
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	if !s.cart.Remove(c.Args().First()) {
		return cli.Exit("product not in cart", 1)
	}
	return s.saveCart()
}

func cartList(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	items := s.cart.Items()
	if len(items) == 0 {
		fmt.Println("cart is empty")
		return nil
	}
	for _, it := range items {
		fmt.Printf("%-38s %-30s %s\n", it.ProductID, it.Name, it.Price)
	}
	return nil
}

func cartClear(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	s.cart.Clear()
	return s.saveCart()
}

func checkout(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	ids := s.cart.ProductIDs()
	if len(ids) == 0 {
		return cli.Exit("cart is empty", 1)
	}
	res, err := s.api.Checkout(c.Context, ids)
	if errors.Is(err, client.ErrUnauthenticated) {
		return cli.Exit("log in first: shopper login --token <token>", 1)
	}
	if err != nil {
		return err
	}
	fmt.Printf("order %s\npay at: %s\n", res.OrderID, res.URL)
	if !c.Bool("wait") {
		return nil
	}
	return waitWith(c, s, res.OrderID, poller.DefaultInterval)
}

func wait(c *cli.Context, orderID string) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	return waitWith(c, s, orderID, c.Duration("interval"))
}

func waitWith(c *cli.Context, s *session, orderID string, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := poller.New(s.api, poller.Config{Interval: interval})
	shown := false
	u, err := p.Poll(ctx, orderID, func(u poller.Update) {
		if u.State == poller.StatePending && !shown {
			fmt.Println("waiting for payment...")
			shown = true
		}
	})
	if errors.Is(err, context.Canceled) {
		return cli.Exit("stopped waiting; the order is still pending", 1)
	}
	if err != nil {
		return err
	}

	switch u.State {
	case poller.StateNotFound:
		return cli.Exit("order not found", 1)
	case poller.StateUnauthenticated:
		return cli.Exit("log in to view your order", 1)
	}

	s.cart.Clear()
	if err := s.saveCart(); err != nil {
		return err
	}
	printReceipt(u.Status)
	return nil
}

func printReceipt(st *client.OrderStatus) {
	fmt.Println("thanks for your order!")
	if st == nil || st.Order == nil {
		return
	}
	o := st.Order
	fmt.Printf("order %s total %s\n", o.OrderID, o.Total)
	if a := o.ShippingAddress; a != nil {
		fmt.Printf("shipping: %s, %s, %s %s, %s\n", a.Name, a.Street, a.PostalCode, a.City, a.Country)
	}
	if a := o.BillingAddress; a != nil {
		fmt.Printf("billing:  %s, %s, %s %s, %s\n", a.Name, a.Street, a.PostalCode, a.City, a.Country)
	}
	for _, p := range st.Products {
		fmt.Printf("  %s  %s  download: %s\n", p.Name, p.Price, p.ProductFile)
	}
}
