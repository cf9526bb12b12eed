package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/CTAG07/Nepenthes/pkg/cascade"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve <identifier>",
	Short: "Show how an identifier resolves against the configured roots",
	Long: `Resolve prints the candidate cascade for a view identifier, the roots it
was searched in and the template that matched, followed by the host theme
template and layout the site would select for the same identifier.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print JSON instead of YAML")
}

// ResolveReport is the output of the resolve command.
type ResolveReport struct {
	View  ViewReport  `json:"view" yaml:"view"`
	Theme ThemeReport `json:"theme" yaml:"theme"`
}

// ViewReport describes the view lookup.
type ViewReport struct {
	Identifier string   `json:"identifier" yaml:"identifier"`
	Order      string   `json:"order" yaml:"order"`
	Roots      []string `json:"roots" yaml:"roots"`
	Candidates []string `json:"candidates" yaml:"candidates"`
	Path       string   `json:"path,omitempty" yaml:"path,omitempty"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Found      bool     `json:"found" yaml:"found"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// ThemeReport describes the host template and layout lookup.
type ThemeReport struct {
	Order            string   `json:"order" yaml:"order"`
	Roots            []string `json:"roots" yaml:"roots"`
	Candidates       []string `json:"candidates" yaml:"candidates"`
	Template         string   `json:"template,omitempty" yaml:"template,omitempty"`
	Layout           string   `json:"layout,omitempty" yaml:"layout,omitempty"`
	LayoutCandidates []string `json:"layout_candidates,omitempty" yaml:"layout_candidates,omitempty"`
	Error            string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	cm, err := NewConfigManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err = setupSchemas(db); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	server, err := NewServer(cm, oneShotConfig(config), logger, db, nil)
	if err != nil {
		return err
	}
	defer server.Close()

	report := buildReport(server, cascade.Identifier(args[0]))
	return writeReport(cmd.OutOrStdout(), report, resolveJSON)
}

// oneShotConfig returns cfg with the template watcher turned off, leaving
// the original server section untouched.
func oneShotConfig(cfg Config) Config {
	serverCfg := *cfg.Server
	serverCfg.WatchTemplates = false
	cfg.Server = &serverCfg
	return cfg
}

func buildReport(server *Server, id cascade.Identifier) ResolveReport {
	var report ResolveReport

	res, err := server.Viewer().Resolve(id)
	report.View = ViewReport{
		Identifier: string(id),
		Order:      cascade.PathMajor.String(),
		Roots:      res.Roots,
		Candidates: res.Candidates,
		Path:       res.Path,
		Name:       res.Name,
		Found:      res.Found,
	}
	if err != nil {
		report.View.Error = err.Error()
		if report.View.Roots == nil {
			report.View.Roots = server.Viewer().Roots()
		}
	}

	site := server.site
	report.Theme = ThemeReport{Order: cascade.CandidateMajor.String(), Roots: site.roots}
	sel, err := site.selectTemplate(id)
	report.Theme.Candidates = sel.Candidates
	if err != nil {
		report.Theme.Error = err.Error()
		return report
	}
	report.Theme.Template = sel.Path
	if server.wrapper.Load() {
		wrapped := site.layouts.Wrap(sel.Path)
		report.Theme.Layout = wrapped.Layout
		report.Theme.LayoutCandidates = wrapped.Candidates
	}
	return report
}

func writeReport(w io.Writer, report ResolveReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
