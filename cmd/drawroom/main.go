package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/drawroom/drawroom/canvas-go/internal/auth"
	"github.com/drawroom/drawroom/canvas-go/internal/collab"
	"github.com/drawroom/drawroom/canvas-go/internal/config"
	"github.com/drawroom/drawroom/canvas-go/internal/engine"
)

var (
	roomFlag   string
	tokenFlag  string
	scriptFlag string
	nameFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "drawroom",
	Short: "Headless drawroom client driven by a line script",
	Long: `drawroom joins a board room on a relay and replays a script of pointer,
keyboard and tool commands against the canvas engine, printing status changes
and rendered draw commands as JSON.

Settings come from API_BASE, WS_URL, ROOM_ID, TOKEN and LOG_LEVEL; flags win.`,
	SilenceUsage: true,
	RunE:         runSession,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Fetch a development token from the relay",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	rootCmd.Flags().StringVar(&roomFlag, "room", "", "room to join (overrides ROOM_ID)")
	rootCmd.Flags().StringVar(&tokenFlag, "token", "", "bearer token (overrides TOKEN)")
	rootCmd.Flags().StringVar(&scriptFlag, "script", "", "script file to run instead of stdin")

	tokenCmd.Flags().StringVar(&nameFlag, "name", "", "display name for the new identity")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Client, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, err
	}
	if roomFlag != "" {
		cfg.RoomID = roomFlag
	}
	if tokenFlag != "" {
		cfg.Token = tokenFlag
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return cfg, nil
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	token := cfg.Token
	if token == "" {
		token, err = devToken(ctx, cfg.APIBase, "")
		if err != nil {
			return err
		}
	}
	userID, err := auth.Subject(token)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	in := io.Reader(os.Stdin)
	if scriptFlag != "" {
		f, err := os.Open(scriptFlag)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	link := collab.NewLink(cfg.WSURL, cfg.APIBase, collab.WithLogger(slog.Default()))
	defer link.Close()

	s := &session{}
	s.eng = engine.New(userID, cfg.RoomID, link, engine.WithLogger(slog.Default()), engine.WithPrompter(s))

	link.Connect(ctx, token)
	return run(ctx, s, link, token, in, cmd.OutOrStdout())
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	token, err := devToken(cmd.Context(), cfg.APIBase, nameFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// run is the single loop that owns the engine: link events and script
// lines are applied one at a time.
func run(ctx context.Context, s *session, link *collab.Link, token string, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		status   = s.eng.Status()
		waiting  <-chan time.Time
		input    = lines
		finished bool
	)
	report := func() {
		if now := s.eng.Status(); now != status {
			status = now
			fmt.Fprintf(out, "status: %q\n", status)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-link.Events():
			s.eng.Apply(ev)
			report()

		case <-waiting:
			waiting = nil
			if finished {
				return nil
			}
			input = lines

		case line, ok := <-input:
			if !ok {
				// drain what is still in flight before exiting
				finished = true
				input = nil
				waiting = time.After(250 * time.Millisecond)
				continue
			}
			act, d, err := s.exec(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			report()

			switch act {
			case actionRender:
				if err := writeJSON(out, s.eng.Render()); err != nil {
					return err
				}
			case actionStatus:
				if err := writeJSON(out, s.eng.State()); err != nil {
					return err
				}
			case actionReconnect:
				link.Connect(ctx, token)
			case actionWait:
				input = nil
				waiting = time.After(d)
			case actionQuit:
				return nil
			}
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// devToken asks a relay started with DEV_TOKENS for a throwaway identity.
func devToken(ctx context.Context, apiBase, name string) (string, error) {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return "", fmt.Errorf("encode dev token request: %w", err)
	}
	endpoint := strings.TrimRight(apiBase, "/") + "/auth/dev-token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post dev token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("post dev token: status %d", resp.StatusCode)
	}

	var res auth.TokenResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode dev token: %w", err)
	}
	return res.Token, nil
}
