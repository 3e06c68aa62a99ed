package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/client"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/config"
	"github.com/ZilDuck/zilliqa-nft-marketplace/internal/messenger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var api *client.Client

func main() {
	config.Init("cli")
	cfg := config.Get()

	senderFlag := &cli.StringFlag{Name: "sender", Aliases: []string{"s"}, Usage: "address of the caller", Required: true}
	valueFlag := &cli.StringFlag{Name: "value", Value: "0", Usage: "ZIL sent with the call"}

	app := &cli.App{
		Name:  "market",
		Usage: "Interact with the NFT marketplace",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: cfg.Client.Url, Usage: "marketd base url"},
		},
		Before: func(c *cli.Context) error {
			api = client.New(c.String("url"), cfg.Client.Retries, cfg.Client.Timeout)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "Put an NFT on sale for a fixed ZIL price",
				ArgsUsage: "<contract> <tokenId> <price>",
				Flags:     []cli.Flag{senderFlag, valueFlag},
				Action:    putOnSale,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a listing and return the NFT",
				ArgsUsage: "<listingId>",
				Flags:     []cli.Flag{senderFlag},
				Action:    idCall("/listings/%d/cancel"),
			},
			{
				Name:      "buy",
				Usage:     "Buy a listed NFT",
				ArgsUsage: "<listingId>",
				Flags:     []cli.Flag{senderFlag, valueFlag},
				Action:    idCall("/listings/%d/buy"),
			},
			{
				Name:      "offer",
				Usage:     "Make an offer in the settlement token",
				ArgsUsage: "<contract> <tokenId> <price>",
				Flags:     []cli.Flag{senderFlag},
				Action:    makeOffer,
			},
			{
				Name:      "cancel-offer",
				Usage:     "Withdraw an offer",
				ArgsUsage: "<offerId>",
				Flags:     []cli.Flag{senderFlag},
				Action:    idCall("/offers/%d/cancel"),
			},
			{
				Name:      "accept",
				Usage:     "Accept an offer on an NFT you hold",
				ArgsUsage: "<offerId>",
				Flags:     []cli.Flag{senderFlag, valueFlag},
				Action:    idCall("/offers/%d/accept"),
			},
			{
				Name:      "listing",
				Usage:     "Show a listing",
				ArgsUsage: "<listingId>",
				Action:    idQuery("/listings/%d"),
			},
			{
				Name:      "offer-info",
				Usage:     "Show an offer",
				ArgsUsage: "<offerId>",
				Action:    idQuery("/offers/%d"),
			},
			{
				Name:      "nft",
				Usage:     "Show an NFT with its listing and offers",
				ArgsUsage: "<contract> <tokenId>",
				Action:    showNft,
			},
			{
				Name:      "account",
				Usage:     "Show the ZIL balance of an account",
				ArgsUsage: "<address>",
				Action: func(c *cli.Context) error {
					return query("/accounts/" + c.Args().First())
				},
			},
			{
				Name:   "config",
				Usage:  "Show the marketplace configuration",
				Action: func(c *cli.Context) error { return query("/config") },
			},
			{
				Name:      "set-token",
				Usage:     "Change the settlement token (admin only)",
				ArgsUsage: "<token>",
				Flags:     []cli.Flag{senderFlag},
				Action:    setSettlementToken,
			},
			{
				Name:      "faucet",
				Usage:     "Credit ZIL to an account",
				ArgsUsage: "<account> <amount>",
				Action:    faucet,
			},
			{
				Name:      "mint",
				Usage:     "Mint an NFT",
				ArgsUsage: "<contract> <to>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "uri", Usage: "token uri"}},
				Action:    mint,
			},
			{
				Name:      "approve",
				Usage:     "Approve the marketplace as operator of a collection",
				ArgsUsage: "<contract> <owner>",
				Flags:     []cli.Flag{&cli.BoolFlag{Name: "revoke", Usage: "revoke the approval"}},
				Action:    approve,
			},
			{
				Name:      "deposit",
				Usage:     "Wrap ZIL into the settlement token",
				ArgsUsage: "<token> <account> <amount>",
				Action:    tokenCall("deposit"),
			},
			{
				Name:      "allow",
				Usage:     "Set the marketplace allowance on a token",
				ArgsUsage: "<token> <account> <amount>",
				Action:    tokenCall("approve"),
			},
			{
				Name:  "watch",
				Usage: "Print marketplace events from the message queue",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "binding", Value: "#", Usage: "routing key pattern, e.g. marketplace.Sale"},
				},
				Action: watch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		var apiErr client.APIError
		if errors.As(err, &apiErr) {
			fmt.Fprintln(os.Stderr, apiErr.Error())
			os.Exit(1)
		}
		zap.L().With(zap.Error(err)).Fatal("Command failed")
	}
}

type call struct {
	Sender string `json:"sender"`
	Value  string `json:"value,omitempty"`
}

func callFrom(c *cli.Context) call {
	return call{Sender: c.String("sender"), Value: c.String("value")}
}

func putOnSale(c *cli.Context) error {
	if c.NArg() != 3 {
		return cli.ShowSubcommandHelp(c)
	}
	tokenId, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token id: %w", err)
	}

	return post("/listings", struct {
		call
		Contract string `json:"contract"`
		TokenId  uint64 `json:"tokenId"`
		Price    string `json:"price"`
	}{callFrom(c), c.Args().Get(0), tokenId, c.Args().Get(2)})
}

func makeOffer(c *cli.Context) error {
	if c.NArg() != 3 {
		return cli.ShowSubcommandHelp(c)
	}
	tokenId, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid token id: %w", err)
	}

	return post("/offers", struct {
		call
		Contract string `json:"contract"`
		TokenId  uint64 `json:"tokenId"`
		Price    string `json:"price"`
	}{callFrom(c), c.Args().Get(0), tokenId, c.Args().Get(2)})
}

func setSettlementToken(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}

	return post("/admin/settlement-token", struct {
		call
		Token string `json:"token"`
	}{callFrom(c), c.Args().First()})
}

func idCall(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := idArg(c)
		if err != nil {
			return err
		}
		return post(fmt.Sprintf(path, id), callFrom(c))
	}
}

func idQuery(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		id, err := idArg(c)
		if err != nil {
			return err
		}
		return query(fmt.Sprintf(path, id))
	}
}

func idArg(c *cli.Context) (uint64, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("%s expects exactly one id", c.Command.Name)
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", c.Args().First())
	}
	return id, nil
}

func showNft(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}
	return query(fmt.Sprintf("/nfts/%s/%s", c.Args().Get(0), c.Args().Get(1)))
}

func faucet(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}
	return post("/faucet", map[string]string{"account": c.Args().Get(0), "amount": c.Args().Get(1)})
}

func mint(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}
	return post(fmt.Sprintf("/collections/%s/mint", c.Args().Get(0)), map[string]string{
		"to":  c.Args().Get(1),
		"uri": c.String("uri"),
	})
}

func approve(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}
	approved := !c.Bool("revoke")
	return post(fmt.Sprintf("/collections/%s/approve", c.Args().Get(0)), map[string]interface{}{
		"owner":    c.Args().Get(1),
		"approved": approved,
	})
}

func tokenCall(action string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.ShowSubcommandHelp(c)
		}
		return post(fmt.Sprintf("/tokens/%s/%s", c.Args().Get(0), action), map[string]string{
			"account": c.Args().Get(1),
			"amount":  c.Args().Get(2),
		})
	}
}

func watch(c *cli.Context) error {
	cfg := config.Get().Amqp
	if !cfg.Enabled {
		return errors.New("amqp is disabled, set AMQP_ENABLED=true")
	}

	m := messenger.NewMessenger(cfg.Uri)
	defer m.Close()

	return m.ConsumeMessages(messenger.MarketplaceEvents, c.String("binding"), func(routingKey string, msg []byte) {
		fmt.Printf("%s %s\n", routingKey, msg)
	})
}

func post(path string, body interface{}) error {
	var out json.RawMessage
	if err := api.Post(path, body, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func query(path string) error {
	var out json.RawMessage
	if err := api.Get(path, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
