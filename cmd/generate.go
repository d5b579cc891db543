package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/activebook/prepdash/data"
	"github.com/activebook/prepdash/internal/ui"
	"github.com/activebook/prepdash/service"
	"github.com/spf13/cobra"
)

var (
	instructionsFlag string
	moreFlag         int
)

var generateCmd = &cobra.Command{
	Use:     "generate [module]",
	Aliases: []string{"gen"},
	Short:   "Generate study content modules",
	Long: `Generate study content from the prepdash server. Without arguments every
module is generated, resuming server-side jobs already in flight and
fanning out fresh generations under the configured concurrency ceiling.
With a module argument only that module runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := data.NewConfigStore()
		catalog, err := data.LoadCatalog(data.GetModulesFilePath())
		if err != nil {
			return err
		}
		client := service.NewClient(store.GetEndpoint())

		if len(args) == 1 {
			spec := catalog.Find(args[0])
			if spec == nil {
				return fmt.Errorf("unknown module %q (known: %s)", args[0], strings.Join(catalog.Keys(), ", "))
			}
			return generateOne(cmd.Context(), client, store, spec)
		}
		if moreFlag > 0 {
			return fmt.Errorf("--more needs a module argument")
		}
		return generateAll(cmd.Context(), client, store, catalog)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&instructionsFlag, "instructions", "i", "", "Extra instructions forwarded to the generator")
	generateCmd.Flags().IntVarP(&moreFlag, "more", "m", 0, "Append N more items to an existing module instead of regenerating")
}

// moduleResult folds streamed payloads for one module. Partial payloads
// are cumulative snapshots, so the latest one is the content; add-more
// items are collected in arrival order.
type moduleResult struct {
	mu     sync.Mutex
	latest json.RawMessage
	items  []json.RawMessage
}

func (r *moduleResult) onContent(p json.RawMessage) {
	cp := make(json.RawMessage, len(p))
	copy(cp, p)
	r.mu.Lock()
	r.latest = cp
	r.items = append(r.items, cp)
	r.mu.Unlock()
}

func (r *moduleResult) content() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// appendItems returns the collected payloads with exact duplicates
// dropped; the server does not dedup add-more output.
func (r *moduleResult) appendItems() []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.items))
	var out []json.RawMessage
	for _, item := range r.items {
		key := string(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// watchInterrupt maps Ctrl-C onto a session abort so cancellation lands
// the session in idle instead of error.
func watchInterrupt(sessions ...*service.Session) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		for range sigCh {
			for _, sess := range sessions {
				sess.Abort()
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(sigCh)
	}
}

func generateOne(ctx context.Context, client *service.Client, store *data.ConfigStore, spec *data.ModuleSpec) error {
	result := &moduleResult{}
	ind := ui.GetIndicator()

	sess := service.NewSession(client, service.ModuleKey(spec.Key), service.SessionHandler{
		OnContent: result.onContent,
		OnStatus: func(_ service.ModuleKey, status service.ModuleStatus) {
			switch status {
			case service.StatusLoading:
				ind.Start(fmt.Sprintf("Generating %s...", spec.Title))
			case service.StatusStreaming:
				ind.Start(fmt.Sprintf("Streaming %s...", spec.Title))
			default:
				ind.Stop()
			}
		},
	})
	defer watchInterrupt(sess)()

	if moreFlag > 0 {
		if !spec.Expandable {
			return fmt.Errorf("module %q does not support --more", spec.Key)
		}
		sess.AddMore(ctx, moreFlag, instructionsFlag)
		return reportAddMore(sess, spec, result)
	}

	// Resume-first: attach to or track a server-side job before
	// triggering a fresh generation.
	coord := newCoordinator(client, store)
	var updMu sync.Mutex
	var coordUpdate *service.ModuleUpdate
	pending := coord.Run(ctx, []*service.Session{sess}, func(u service.ModuleUpdate) {
		updMu.Lock()
		coordUpdate = &u
		updMu.Unlock()
		switch u.Status {
		case service.StatusLoading:
			ind.Start(fmt.Sprintf("Waiting on %s (already running server-side)...", spec.Title))
		default:
			ind.Stop()
		}
	})
	if len(pending) == 1 {
		sess.Start(ctx, instructionsFlag)
	}
	ind.Stop()

	if content := result.content(); content != nil && sess.Status() == service.StatusComplete {
		renderModule(spec, content)
		return nil
	}
	updMu.Lock()
	upd := coordUpdate
	updMu.Unlock()
	if upd != nil && upd.Status == service.StatusComplete && upd.Content != nil {
		renderModule(spec, upd.Content)
		return nil
	}
	return reportTerminal(sess, spec)
}

func reportAddMore(sess *service.Session, spec *data.ModuleSpec, result *moduleResult) error {
	if sess.Status() == service.StatusComplete {
		items := result.appendItems()
		fmt.Printf("\n%s %s\n", sectionColor(spec.Title), grayColor(fmt.Sprintf("(+%d)", len(items))))
		for _, item := range items {
			renderPayload(item)
		}
		return nil
	}
	return reportTerminal(sess, spec)
}

// reportTerminal prints the session's final state when there is no
// content to show.
func reportTerminal(sess *service.Session, spec *data.ModuleSpec) error {
	switch sess.Status() {
	case service.StatusError:
		fmt.Printf("%s %s: %s\n", errColor("✖"), spec.Title, sess.ErrMessage())
		fmt.Println(grayColor("Run the command again to retry."))
		return fmt.Errorf("generation of %s failed", spec.Key)
	case service.StatusIdle:
		fmt.Printf("%s %s cancelled\n", warnColor("•"), spec.Title)
		return nil
	default:
		fmt.Printf("%s %s finished without content\n", warnColor("•"), spec.Title)
		return nil
	}
}

func generateAll(ctx context.Context, client *service.Client, store *data.ConfigStore, catalog data.Catalog) error {
	var printMu sync.Mutex
	statusLine := func(format string, args ...interface{}) {
		printMu.Lock()
		fmt.Printf(format+"\n", args...)
		printMu.Unlock()
	}

	results := make(map[string]*moduleResult, len(catalog))
	sessions := make([]*service.Session, 0, len(catalog))
	specs := make(map[service.ModuleKey]*data.ModuleSpec, len(catalog))
	for i := range catalog {
		spec := &catalog[i]
		result := &moduleResult{}
		results[spec.Key] = result
		specs[service.ModuleKey(spec.Key)] = spec
		sessions = append(sessions, service.NewSession(client, service.ModuleKey(spec.Key), service.SessionHandler{
			OnContent: result.onContent,
			OnStatus: func(module service.ModuleKey, status service.ModuleStatus) {
				statusLine("%s %s", grayColor("["+string(module)+"]"), status)
			},
		}))
	}
	defer watchInterrupt(sessions...)()

	// First reconcile with whatever the server is already doing.
	coord := newCoordinator(client, store)
	var updMu sync.Mutex
	coordUpdates := make(map[service.ModuleKey]service.ModuleUpdate)
	pending := coord.Run(ctx, sessions, func(u service.ModuleUpdate) {
		updMu.Lock()
		coordUpdates[u.Module] = u
		updMu.Unlock()
		statusLine("%s %s", grayColor("["+string(u.Module)+"]"), u.Status)
	})

	// Fan out the rest under the admin-configured ceiling.
	if len(pending) > 0 {
		limit := store.GetConcurrencyOverride()
		if limit <= 0 {
			limit = client.MaxConcurrent(ctx)
		}
		statusLine("%s generating %d module(s), %d at a time", grayColor("[prepdash]"), len(pending), limit)

		byModule := make(map[service.ModuleKey]*service.Session, len(sessions))
		for _, sess := range sessions {
			byModule[sess.Module()] = sess
		}
		tasks := make([]service.Task, 0, len(pending))
		for _, module := range pending {
			sess := byModule[module]
			tasks = append(tasks, func() error {
				return sess.Start(ctx, instructionsFlag)
			})
		}
		service.RunLimited(ctx, tasks, limit)
	}

	// Render in catalog order once everything has settled.
	failures := 0
	for i := range catalog {
		spec := &catalog[i]
		module := service.ModuleKey(spec.Key)
		if content := results[spec.Key].content(); content != nil {
			renderModule(spec, content)
			continue
		}
		updMu.Lock()
		upd, ok := coordUpdates[module]
		updMu.Unlock()
		if ok && upd.Status == service.StatusComplete && upd.Content != nil {
			renderModule(spec, upd.Content)
			continue
		}
		for _, sess := range sessions {
			if sess.Module() == module {
				if reportTerminal(sess, spec) != nil {
					failures++
				}
				break
			}
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d module(s) failed", failures)
	}
	return nil
}

func newCoordinator(client *service.Client, store *data.ConfigStore) *service.Coordinator {
	coord := service.NewCoordinator(client)
	coord.SetPollInterval(store.GetPollInterval())
	coord.SetPollCeiling(store.GetPollCeiling())
	return coord
}

// renderModule prints one module's content under its section title.
func renderModule(spec *data.ModuleSpec, raw json.RawMessage) {
	fmt.Printf("\n%s\n", sectionColor(spec.Title))
	renderPayload(raw)
}

// renderPayload renders string payloads as markdown and everything else
// as indented JSON.
func renderPayload(raw json.RawMessage) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		md := service.NewMarkdown()
		md.Write(text)
		fmt.Print(md.Render())
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}
