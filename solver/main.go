package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"karuta-solver/solver/agent"
	"karuta-solver/solver/api"
	"karuta-solver/solver/store"
)

//
// ===== pretty printing =====
//

var useColor bool
var debugState bool

const (
	colReset  = "\033[0m"
	colBold   = "\033[1m"
	colDim    = "\033[2m"
	colGreen  = "\033[32m"
	colRed    = "\033[31m"
	colYellow = "\033[33m"
	colCyan   = "\033[36m"
)

func c(code, s string) string {
	if !useColor {
		return s
	}
	return code + s + colReset
}
func bold(s string) string { return c(colBold, s) }
func dim(s string) string  { return c(colDim, s) }
func good(s string) string { return c(colGreen, s) }
func warn(s string) string { return c(colYellow, s) }
func bad(s string) string  { return c(colRed, s) }
func cyan(s string) string { return c(colCyan, s) }
func section(title string) { fmt.Printf("\n%s %s %s\n", dim("──"), bold(title), dim("──")) }
func sub(title string)     { fmt.Printf("%s %s\n", dim("•"), bold(title)) }

//
// ===== bootstrap =====
//

func mustEnv(keys ...string) {
	for _, k := range keys {
		if os.Getenv(k) == "" {
			log.Fatalf("Missing required env var %s. Put it in .env (dev) or set it on the host (prod).", k)
		}
	}
}
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	_ = godotenv.Load()

	useColor = (os.Getenv("NO_COLOR") == "") && (strings.TrimSpace(os.Getenv("USE_COLOR")) != "0")
	debugState = asBool(os.Getenv("DEBUG"))

	var migrate, mock bool
	for _, a := range os.Args[1:] {
		switch a {
		case "--migrate":
			migrate = true
		case "--mock-server":
			mock = true
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	if migrate {
		mustEnv("DATABASE_URL")
		db, err := store.Open(os.Getenv("DATABASE_URL"))
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close(context.Background())
		if err := store.Migrate(context.Background(), db); err != nil {
			log.Fatal(err)
		}
		log.Println("migrated")
		return
	}

	if mock {
		runMockServer(ctx)
		return
	}

	mustEnv("TEMP_YAML_DIR", "ENDPOINT", "TOKEN", "MODEL_PATH")
	dir := os.Getenv("TEMP_YAML_DIR")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal(err)
	}

	var db *store.DB
	if dsn := getenv("DATABASE_URL", ""); dsn != "" {
		p, err := store.Open(dsn)
		if err == nil {
			if perr := p.Ping(ctx); perr != nil {
				p.Close(context.Background())
				err = perr
			}
		}
		if err != nil {
			log.Printf("DB disabled (open failed): %v", err)
		} else {
			db = p
			defer db.Close(context.Background())
			if asBool(os.Getenv("AUTO_MIGRATE")) {
				if err := store.Migrate(context.Background(), db); err != nil {
					log.Printf("migrate failed (continuing without DB): %v", err)
					db = nil
				}
			}
		}
	}

	client, err := api.NewFromEnv()
	if err != nil {
		log.Fatal(err)
	}
	clf, err := agent.NewOrtClassifier(agent.OrtConfig{
		SharedLib:    getenv("ORT_SHARED_LIB", ""),
		ModelPath:    os.Getenv("MODEL_PATH"),
		InputName:    getenv("ORT_INPUT_NAME", "input"),
		OutputName:   getenv("ORT_OUTPUT_NAME", "output"),
		InputSamples: atoiDef(os.Getenv("ORT_INPUT_SAMPLES"), 48000),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer clf.Close()

	probs, err := store.LoadProbabilities(filepath.Join(dir, store.ProbabilitiesFile))
	if err != nil {
		log.Fatalf("load %s: %v", store.ProbabilitiesFile, err)
	}
	st, err := store.LoadState(filepath.Join(dir, store.StateFile))
	if err != nil {
		log.Fatalf("load %s: %v", store.StateFile, err)
	}

	s := &session{
		req:        client,
		classifier: clf,
		db:         db,
		dir:        dir,
		probs:      probs,
		state:      st,
		stats:      newMatchStats(),
		margin:     time.Duration(atoiDef(os.Getenv("ANSWER_MARGIN_MS"), 1500)) * time.Millisecond,
		poll:       time.Duration(atoiDef(os.Getenv("POLL_INTERVAL_MS"), 1000)) * time.Millisecond,
	}
	err = s.runMatch(ctx)
	printSummary(s.stats)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("%s %v", bad("match aborted:"), err)
		clf.Close()
		if db != nil {
			db.Close(context.Background())
		}
		os.Exit(1)
	}
}

func runMockServer(ctx context.Context) {
	mustEnv("MOCK_CHUNK_DIR")
	port := getenv("PORT", "3000")
	m, err := newMockMatch(mockConfig{
		ChunkDir:   os.Getenv("MOCK_CHUNK_DIR"),
		Token:      os.Getenv("TOKEN"),
		HeaderName: getenv("PROCON_TOKEN_HEADER", api.TokenHeader),
		Expected:   splitCodes(os.Getenv("MOCK_EXPECTED")),
		TimeLimit:  atoiDef(os.Getenv("MOCK_TIME_LIMIT"), 60),
	})
	if err != nil {
		log.Fatal(err)
	}
	srv := &http.Server{Addr: ":" + port, Handler: Router(m), ReadTimeout: 15 * time.Second, WriteTimeout: 15 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("rehearsal server on http://localhost:%s with %d chunks (Ctrl+C to stop)", port, len(m.files))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func splitCodes(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	cancel()
}
