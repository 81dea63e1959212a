// README: Bench checks against the demo data set: lifecycle flow, guards, races, cache and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

// Tables created by the Postgres backend's migration.
var expectedTables = []string{"drivers", "passengers", "bookings", "booking_events"}

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// bookingID carries the lifecycle booking between flow checks.
	bookingID string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []TestCase {
	pickup := map[string]any{"pickup_latitude": 28.6139, "pickup_longitude": 77.2090}
	dropoff := map[string]any{"dropoff_latitude": 28.7041, "dropoff_longitude": 77.1025}

	return []TestCase{
		{Name: "Env: Postgres schema", Run: checkSchema},
		{Name: "Env: Redis connect", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "redis not configured"}
			}
			if err := r.redis.Ping(ctx).Err(); err != nil {
				return fail(err)
			}
			return Result{Status: statusPass}
		}},
		{Name: "API: health", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodGet, "/health", nil, http.StatusOK)
		}},

		{Name: "Flow: passenger books a priced ride", Run: func(ctx context.Context, r *Runner) Result {
			body := merge(map[string]any{"user_id": "passenger_001", "driver_id": "driver_001"}, pickup, dropoff)
			res, payload := r.call(ctx, http.MethodPost, "/api/bookings", body, http.StatusCreated)
			if res.Status != statusPass {
				return res
			}
			b := bookingOf(payload)
			if b["fare"] == nil {
				return Result{Status: statusFail, Note: "booking has no fare"}
			}
			r.bookingID, _ = b["booking_id"].(string)
			res.Note = fmt.Sprintf("booking=%s fare=%v surge=%v", r.bookingID, b["fare"], b["surge_multiplier"])
			return res
		}},
		flowStep("Flow: driver accepts", "/api/drivers/bookings/%s/accept", map[string]any{"driver_id": "driver_001"}, "driver_accepted"),
		flowStep("Flow: passenger confirms", "/api/bookings/%s/confirm", map[string]any{"user_id": "passenger_001"}, "confirmed"),
		flowStep("Flow: driver starts ride", "/api/drivers/bookings/%s/start", map[string]any{"driver_id": "driver_001"}, "in_progress"),
		flowStep("Flow: driver completes ride", "/api/drivers/bookings/%s/complete", map[string]any{"driver_id": "driver_001"}, "completed"),
		{Name: "Flow: audit log has every transition", Run: func(ctx context.Context, r *Runner) Result {
			if r.bookingID == "" {
				return Result{Status: statusSkip, Note: "no booking from earlier step"}
			}
			res, payload := r.call(ctx, http.MethodGet, "/api/bookings/"+r.bookingID+"/events", nil, http.StatusOK)
			if res.Status == statusPass && payload["count"] != float64(5) {
				return Result{Status: statusFail, Note: fmt.Sprintf("events=%v", payload["count"])}
			}
			return res
		}},
		{Name: "Guard: completed booking cannot be cancelled", Run: func(ctx context.Context, r *Runner) Result {
			if r.bookingID == "" {
				return Result{Status: statusSkip, Note: "no booking from earlier step"}
			}
			return r.expect(ctx, http.MethodPost, "/api/bookings/"+r.bookingID+"/cancel", map[string]any{"user_id": "passenger_001"}, http.StatusConflict)
		}},
		{Name: "Guard: invalid coordinates -> 400", Run: func(ctx context.Context, r *Runner) Result {
			return r.expect(ctx, http.MethodPut, "/api/drivers/driver_002/location", map[string]any{"latitude": 123.0, "longitude": 456.0}, http.StatusBadRequest)
		}},
		{Name: "Guard: one active booking per passenger", Run: func(ctx context.Context, r *Runner) Result {
			first, payload := r.call(ctx, http.MethodPost, "/api/bookings", merge(map[string]any{"user_id": "passenger_002", "driver_id": "driver_002"}, pickup), http.StatusCreated)
			if first.Status != statusPass {
				return first
			}
			id, _ := bookingOf(payload)["booking_id"].(string)
			defer r.call(ctx, http.MethodPost, "/api/bookings/"+id+"/cancel", map[string]any{"user_id": "passenger_002"}, http.StatusOK)
			return r.expect(ctx, http.MethodPost, "/api/bookings", merge(map[string]any{"user_id": "passenger_002", "driver_id": "driver_003"}, pickup), http.StatusConflict)
		}},

		{Name: "Concurrency: one accept and one cancel win", Run: func(ctx context.Context, r *Runner) Result {
			res, payload := r.call(ctx, http.MethodPost, "/api/bookings", merge(map[string]any{"user_id": "passenger_003", "driver_id": "driver_003"}, pickup), http.StatusCreated)
			if res.Status != statusPass {
				return res
			}
			id, _ := bookingOf(payload)["booking_id"].(string)
			accepted := r.concurrent(ctx, http.MethodPost, "/api/drivers/bookings/"+id+"/accept", map[string]any{"driver_id": "driver_003"})
			cancelled := r.concurrent(ctx, http.MethodPost, "/api/bookings/"+id+"/cancel", map[string]any{"user_id": "passenger_003"})
			note := fmt.Sprintf("accept_ok=%d cancel_ok=%d", accepted, cancelled)
			if accepted != 1 || cancelled != 1 {
				return Result{Status: statusFail, Note: note}
			}
			return Result{Status: statusPass, Note: note}
		}},

		{Name: "Cache: driver location cached in Redis", Run: func(ctx context.Context, r *Runner) Result {
			if r.redis == nil {
				return Result{Status: statusSkip, Note: "redis not configured"}
			}
			res := r.expect(ctx, http.MethodPut, "/api/drivers/driver_002/location", map[string]any{"latitude": 28.6280, "longitude": 77.2200}, http.StatusOK)
			if res.Status != statusPass {
				return res
			}
			n, err := r.redis.Exists(ctx, "loc:driver:driver_002").Result()
			if err != nil {
				return fail(err)
			}
			if n != 1 {
				return Result{Status: statusFail, Note: "location key missing"}
			}
			return res
		}},

		{Name: "Perf: driver location update throughput", Run: func(ctx context.Context, r *Runner) Result {
			return r.load(ctx, http.MethodPut, "/api/drivers/driver_002/location", map[string]any{"latitude": 28.6280, "longitude": 77.2200})
		}},
		{Name: "Perf: nearby driver ranking throughput", Run: func(ctx context.Context, r *Runner) Result {
			return r.load(ctx, http.MethodPost, "/api/passengers/nearby-drivers", map[string]any{
				"user_id": "passenger_004", "latitude": 28.4595, "longitude": 77.0266,
				"destination": map[string]any{"latitude": 28.6139, "longitude": 77.2090},
			})
		}},
	}
}

func checkSchema(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	for _, t := range expectedTables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return fail(err)
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass}
}

func flowStep(name, pathFormat string, body map[string]any, wantStatus string) TestCase {
	return TestCase{Name: name, Run: func(ctx context.Context, r *Runner) Result {
		if r.bookingID == "" {
			return Result{Status: statusSkip, Note: "no booking from earlier step"}
		}
		res, payload := r.call(ctx, http.MethodPost, fmt.Sprintf(pathFormat, r.bookingID), body, http.StatusOK)
		if res.Status != statusPass {
			return res
		}
		if got := bookingOf(payload)["status"]; got != wantStatus {
			return Result{Status: statusFail, Latency: res.Latency, Note: fmt.Sprintf("status=%v", got)}
		}
		return res
	}}
}

func (r *Runner) expect(ctx context.Context, method, path string, body any, want int) Result {
	res, _ := r.call(ctx, method, path, body, want)
	return res
}

// call sends one JSON request and decodes an object response.
func (r *Runner) call(ctx context.Context, method, path string, body any, want int) (Result, map[string]any) {
	start := time.Now()
	code, payload, err := r.do(ctx, method, path, body)
	latency := time.Since(start)
	if err != nil {
		return fail(err), nil
	}
	if code != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d body=%v", code, want, payload)}, payload
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", code)}, payload
}

func (r *Runner) do(ctx context.Context, method, path string, body any) (int, map[string]any, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload, nil
}

// concurrent fires Concurrency identical requests released together and
// returns how many got a 2xx.
func (r *Runner) concurrent(ctx context.Context, method, path string, body any) int {
	var ok atomic.Int64
	gate := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			<-gate
			code, _, err := r.do(ctx, method, path, body)
			if err == nil && code >= 200 && code < 300 {
				ok.Add(1)
			}
			return nil
		})
	}
	close(gate)
	_ = g.Wait()
	return int(ok.Load())
}

func (r *Runner) load(ctx context.Context, method, path string, body any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var g errgroup.Group
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			for time.Now().Before(end) && ctx.Err() == nil {
				code, _, err := r.do(ctx, method, path, body)
				if err != nil || code >= 500 {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: fmt.Sprintf("no requests completed, errors=%d", errCount.Load())}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func bookingOf(payload map[string]any) map[string]any {
	b, _ := payload["booking"].(map[string]any)
	return b
}

func merge(parts ...map[string]any) map[string]any {
	out := map[string]any{}
	for _, p := range parts {
		for k, v := range p {
			out[k] = v
		}
	}
	return out
}

func fail(err error) Result {
	return Result{Status: statusFail, Note: err.Error()}
}
