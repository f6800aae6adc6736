package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GiGurra/boa/pkg/boa"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/ledger"
	"ledger/internal/log"
)

type Params struct {
	Action   string `descr:"Command to run" alts:"list,add,delete,totals,export,import,watch" strict:"true" positional:"true"`
	Name     string `descr:"Description of the transaction (add)" optional:"true"`
	Amount   string `descr:"Non-negative amount (add)" optional:"true"`
	Type     string `descr:"Transaction type (add)" alts:"income,expense" default:"expense"`
	Category string `descr:"Category key (add)" optional:"true"`
	Date     string `descr:"Date as YYYY-MM-DD, today when empty (add)" optional:"true"`
	ID       int    `descr:"Transaction id (delete)" default:"0"`
	Limit    int    `descr:"Rows to show, 0 for all (list)" default:"10"`
	File     string `descr:"Workbook path (export, import)" default:"transactions.xlsx"`
	Color    bool   `descr:"Colour amounts (list)" default:"false"`
}

func main() {
	boa.NewCmdT[Params]("ledgerctl").
		WithShort("Inspect and edit the finance ledger").
		WithLong("Reads the ledger from the configured backend (DATA_BACKEND, DATA_FILE, SQLITE_DB_PATH) and lists, adds, deletes, exports or imports transactions. The watch command follows change events published on AMQP_URL.").
		WithRunFunc(func(params *Params) {
			cli.LoadEnvFile()
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			// Commands print to stdout; logs go to stderr.
			logger := cli.SetupLogger(cfg.LogLevel, os.Stderr).WithComponent(log.ComponentCLI)

			ctx, stop := cli.SignalContext(context.Background())
			defer stop()

			store, res, err := cli.OpenLedger(ctx, cfg, logger)
			if err != nil {
				cli.Exit(logger, "Failed to open ledger", err)
			}
			defer res.Close()

			renderer, err := cli.NewRenderer(cfg)
			if err != nil {
				cli.Exit(logger, "Failed to configure currency", err)
			}

			a := &cli.Actions{Store: store, Renderer: renderer, Out: os.Stdout, Color: params.Color}
			if err := dispatch(ctx, a, params, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger); err != nil {
				logger.Error("Command failed", log.FieldOperation, params.Action, log.FieldError, err)
				_ = res.Close()
				os.Exit(1)
			}
		}).
		Run()
}

func dispatch(ctx context.Context, a *cli.Actions, p *Params, amqpURL, exchange, queue string, logger *log.Logger) error {
	switch p.Action {
	case "list":
		a.List(p.Limit)
	case "totals":
		a.Totals()
	case "add":
		_, err := a.Add(ctx, ledger.Candidate{
			Name:     p.Name,
			Amount:   p.Amount,
			Type:     p.Type,
			Category: p.Category,
			Date:     p.Date,
		})
		return err
	case "delete":
		if p.ID < 1 {
			return fmt.Errorf("delete needs --id")
		}
		return a.Delete(ctx, int64(p.ID))
	case "export":
		return a.Export(p.File)
	case "import":
		_, err := a.Import(ctx, p.File)
		return err
	case "watch":
		if amqpURL == "" {
			return fmt.Errorf("watch needs AMQP_URL")
		}
		client, err := amqp.NewClient(ctx, amqpURL, exchange, queue, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		return a.Watch(ctx, client)
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}
	return nil
}
