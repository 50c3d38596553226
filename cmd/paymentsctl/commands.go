package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/booking-payments/internal/config"
	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
	"github.com/josh-kwaku/booking-payments/internal/processor"
	"github.com/josh-kwaku/booking-payments/internal/repository"
	"github.com/josh-kwaku/booking-payments/internal/service/payment"
	"github.com/josh-kwaku/booking-payments/internal/service/reconcile"
	"github.com/josh-kwaku/booking-payments/migrations"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrations.Up(cmd.Context(), db)
			if err != nil {
				return err
			}
			for _, f := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", f)
			}
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <tx_ref>",
		Short: "Show a payment and its reconciliation history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := payment.NewService(
				repository.NewPaymentRepository(db),
				repository.NewPaymentEventRepository(db),
				nil, nil, nil,
			)
			p, events, err := svc.History(cmd.Context(), domain.ByMerchantReference(args[0]))
			if err != nil {
				return err
			}

			if asJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"payment": p, "events": events})
			}
			printPayment(cmd.OutOrStdout(), p)
			printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	var txRef, processorTxID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Pull the payment status from the processor and reconcile it",
		Example: `  paymentsctl verify --tx-ref BK1-0a1b2c3d
  paymentsctl verify --processor-tx-id APf3x9`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lookup, err := domain.LookupFrom(txRef, processorTxID)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.Init("paymentsctl", cfg.LogLevel, "development")

			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			payments := repository.NewPaymentRepository(db)
			events := repository.NewPaymentEventRepository(db)
			client := processor.NewClient(processor.Config{
				BaseURL:   cfg.ProcessorBaseURL,
				SecretKey: cfg.ProcessorSecretKey,
				Timeout:   cfg.ProcessorTimeout(),
			})
			engine := reconcile.NewEngine(db, payments, events, nil, logger)
			svc := payment.NewService(payments, events, client, engine, cfg)

			res, err := svc.Verify(cmd.Context(), lookup)
			if err != nil {
				return err
			}

			if asJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			if res.Payment == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no local payment for", lookup.String())
				fmt.Fprintln(cmd.OutOrStdout(), string(res.ProcessorResponse))
				return nil
			}
			printPayment(cmd.OutOrStdout(), res.Payment)
			if res.Outcome != nil && res.Outcome.Transitioned {
				fmt.Fprintf(cmd.OutOrStdout(), "transitioned %s -> %s\n", res.Outcome.From, res.Outcome.To)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&txRef, "tx-ref", "", "merchant reference")
	cmd.Flags().StringVar(&processorTxID, "processor-tx-id", "", "processor transaction id")
	cmd.MarkFlagsMutuallyExclusive("tx-ref", "processor-tx-id")
	cmd.MarkFlagsOneRequired("tx-ref", "processor-tx-id")

	return cmd
}

func openDB(cmd *cobra.Command) (*sql.DB, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		return nil, errors.New("database url is required (--database-url or DATABASE_URL)")
	}
	db, err := repository.NewPostgresDB(cmd.Context(), url, repository.PoolConfig{
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		PingAttempts: 1,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("connected to database")
	return db, nil
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printPayment(w io.Writer, p *domain.Payment) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	processorID := "-"
	if p.ProcessorTransactionID != nil {
		processorID = *p.ProcessorTransactionID
	}
	fmt.Fprintf(tw, "tx_ref\t%s\n", p.MerchantReference)
	fmt.Fprintf(tw, "processor_tx_id\t%s\n", processorID)
	fmt.Fprintf(tw, "booking\t%s\n", p.BookingReference)
	fmt.Fprintf(tw, "amount\t%s %s\n", p.Amount.StringFixed(2), p.Currency)
	fmt.Fprintf(tw, "status\t%s\n", p.State)
	fmt.Fprintf(tw, "updated\t%s\n", p.UpdatedAt.Format("2006-01-02 15:04:05Z07:00"))
	tw.Flush()
}

func printEvents(w io.Writer, events []domain.PaymentEvent) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tCHANNEL\tSIGNAL\tFROM\tTO")
	for _, e := range events {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Channel, e.Signal, e.FromState, e.ToState)
	}
	tw.Flush()
}
