package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"reply-assistant/internal/domain"
	"reply-assistant/internal/domain/model"
	"reply-assistant/internal/domain/ports/repository"
	"reply-assistant/internal/infra/api"
	pg "reply-assistant/internal/infra/db/postgres"
	"reply-assistant/internal/infra/metrics"
	red "reply-assistant/internal/infra/redis"
	"reply-assistant/internal/infra/sched"
)

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker pool, scheduler and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, err := openBase(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		metrics.MustRegister()
		metrics.SetBuildInfo(version, commit)

		a, err := buildApp(ctx, b)
		if err != nil {
			return err
		}
		go pg.ReportPoolStats(ctx, b.db, 15*time.Second)

		scheduler := sched.New(red.NewLocker(b.redis), b.log,
			sched.MaintenanceTasks(b.cfg.Scheduler, a.jobs, a.pool, b.log)...)
		srv := api.NewServer(api.Deps{
			Jobs:        a.pool,
			Refiner:     a.gen,
			Suggestions: a.cache,
			Messages:    b.msgs,
			Checks: []api.HealthCheck{
				{Name: "postgres", Check: b.db.Ping},
				{Name: "redis", Check: b.redis.Ping},
			},
		}, b.cfg.HTTP, b.cfg.Security.APIKey, b.log)

		a.pool.Start(ctx)
		scheduler.Start(ctx)

		err = srv.Run(ctx)
		if err != nil {
			b.log.Error().Err(err).Msg("http server stopped")
		}
		b.log.Info().Msg("shutting down")
		scheduler.Stop()
		a.pool.Stop()
		a.detacher.Wait()
		b.log.Info().Msg("shutdown complete")
		return err
	},
}

// --- enqueue ---

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <queue> [file]",
	Short: "Submit a job payload (JSON) to a queue",
	Long: `Submit a job payload to a queue. The payload is read from file, or from
stdin when no file is given.

Examples:
  reply-assistant enqueue generation ./job.json
  echo '{"older_than_days":30}' | reply-assistant enqueue retention`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 2 {
			data, err = os.ReadFile(args[1])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		payload, err := decodePayload(model.QueueName(args[0]), data)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		b, err := openBase(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		attempts := b.cfg.Queues[args[0]].MaxAttempts
		job, err := model.NewJob(payload, attempts)
		if err != nil {
			return err
		}
		if err := pg.NewJobRepo(b.db).Enqueue(ctx, repository.NoTX, job); err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s job %s\n", job.Queue, job.ID)
		return nil
	},
}

func decodePayload(queue model.QueueName, data []byte) (model.Payload, error) {
	switch queue {
	case model.QueueGeneration:
		p, err := decodeAs[model.GenerationJob](data)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
		}
		return p, nil
	case model.QueueWriteBack:
		return decodeAs[model.WriteBackPayload](data)
	case model.QueueReport:
		return decodeAs[model.ReportPayload](data)
	case model.QueueBatchScan:
		return decodeAs[model.BatchScanPayload](data)
	case model.QueueIndex:
		return decodeAs[model.IndexPayload](data)
	case model.QueueRetention:
		return decodeAs[model.RetentionPayload](data)
	case model.QueueAggregation:
		return decodeAs[model.AggregationPayload](data)
	}
	return nil, fmt.Errorf("unknown queue %q", queue)
}

func decodeAs[P model.Payload](data []byte) (P, error) {
	var p P
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", p.Queue(), err)
	}
	return p, nil
}

// --- pricing ---

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Manage per-model token prices",
}

var pricingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active model prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBase(cmd.Context(), func(ctx context.Context, b *base) error {
			rows, err := b.pricing().List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tINPUT (micros/token)\tOUTPUT (micros/token)\tUPDATED")
			for _, p := range rows {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", p.ModelName, p.InputTokenPriceMicros, p.OutputTokenPriceMicros, p.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		})
	},
}

var pricingSetCmd = &cobra.Command{
	Use:   "set <model> <input-micros> <output-micros>",
	Short: "Create or replace a model's token prices",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("input price: %w", err)
		}
		out, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("output price: %w", err)
		}
		return withBase(cmd.Context(), func(ctx context.Context, b *base) error {
			p, err := b.pricing().Set(ctx, args[0], in, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: input %d, output %d micros/token\n", p.ModelName, p.InputTokenPriceMicros, p.OutputTokenPriceMicros)
			return nil
		})
	},
}

var pricingDeactivateCmd = &cobra.Command{
	Use:   "deactivate <model>",
	Short: "Stop charging for a model; later calls record zero cost",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBase(cmd.Context(), func(ctx context.Context, b *base) error {
			if err := b.pricing().Deactivate(ctx, args[0]); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("no active pricing for %q", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deactivated\n", args[0])
			return nil
		})
	},
}

// --- credential ---

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage tenant bot credentials",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set <tenant-id>",
	Short: "Store a tenant's bot token, encrypted at rest",
	Long: `Store a tenant's bot token, encrypted at rest. The token is read from
--token or, when omitted, from the SUGGEST_BOT_TOKEN environment variable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			token = os.Getenv("SUGGEST_BOT_TOKEN")
		}
		if token == "" {
			return errors.New("a token is required (--token or SUGGEST_BOT_TOKEN)")
		}
		tenantID := args[0]
		return withBase(cmd.Context(), func(ctx context.Context, b *base) error {
			enc, err := b.encryption()
			if err != nil {
				return err
			}
			sealed, err := enc.Encrypt(tenantID, token)
			if err != nil {
				return fmt.Errorf("encrypt token: %w", err)
			}
			cred := &model.DeliveryCredential{TenantID: tenantID, EncryptedToken: sealed}
			if err := pg.NewDeliveryRepo(b.db).Save(ctx, repository.NoTX, cred); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credential stored for tenant %s\n", tenantID)
			return nil
		})
	},
}

func init() {
	pricingCmd.AddCommand(pricingListCmd, pricingSetCmd, pricingDeactivateCmd)
	credentialSetCmd.Flags().String("token", "", "bot token (prefer SUGGEST_BOT_TOKEN to keep it out of shell history)")
	credentialCmd.AddCommand(credentialSetCmd)
}

func withBase(ctx context.Context, fn func(ctx context.Context, b *base) error) error {
	b, err := openBase(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}
