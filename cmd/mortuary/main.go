// Command mortuary manages the mortuary record table: intake, edits, the
// release and transfer actions, filtered listing, import/export, backups and
// the JSON API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"mortuary/internal/config"
	"mortuary/internal/core"
	"mortuary/internal/httpapi"
	"mortuary/internal/infra/blob"
	"mortuary/internal/logger"
	"mortuary/internal/tabular"
	"mortuary/pkg/domain"
)

var exitFunc = os.Exit

const usage = `usage: mortuary [-env file] <command> [flags]

commands:
  init       create the record table if it does not exist
  add        admit a body (new record)
  update     edit a record by id
  release    mark a record Released
  transfer   mark a record Transferred
  show       print one record
  list       list records, optionally filtered
  export     write records as csv, xlsx or json
  import     replace every record from a csv, xlsx or json file
  backup     snapshot the table to the backup store
  backups    list existing backups
  serve      run the JSON API
`

// errUsage marks argument problems that exit with status 2.
var errUsage = errors.New("usage error")

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("mortuary", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { _, _ = fmt.Fprint(stderr, usage) }
	envFile := global.String("env", ".env", "dotenv file to load before reading MORTUARY_* variables")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		global.Usage()
		return 2
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	ctx := context.Background()
	a, err := openApp(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "startup: %v\n", err)
		return 1
	}
	defer a.close()

	err = cmd(ctx, a, rest[1:], stdout, stderr)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return 2
	default:
		_, _ = fmt.Fprintf(stderr, "%s: %v\n", rest[0], err)
		return 1
	}
}

type app struct {
	cfg     config.Config
	log     *zap.Logger
	svc     *core.Service
	metrics *core.PrometheusMetrics
	store   domain.RecordStore
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "mortuary")
	if err != nil {
		return nil, err
	}
	store, err := core.OpenRecordStore(ctx, cfg.Storage())
	if err != nil {
		return nil, err
	}
	metrics := core.NewPrometheusMetrics()
	opts := []core.Option{
		core.WithLogger(log),
		core.WithMetrics(metrics),
		core.WithLocation(cfg.Location),
	}
	backups, err := blob.Open(ctx, cfg.Backup())
	if err != nil {
		log.Warn("backup store unavailable", zap.String("driver", cfg.BackupDriver), zap.Error(err))
	} else {
		opts = append(opts, core.WithBackupStore(backups))
	}
	svc := core.NewService(store, opts...)
	if err := svc.Initialize(ctx); err != nil {
		_ = core.CloseStore(store)
		return nil, err
	}
	log.Debug("record store ready",
		zap.String("driver", cfg.StorageDriver),
		zap.String("location", store.Location()),
		zap.Bool("dotenv", cfg.DotEnvLoaded),
	)
	return &app{cfg: cfg, log: log, svc: svc, metrics: metrics, store: store}, nil
}

func (a *app) close() {
	if err := core.CloseStore(a.store); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

type command func(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error

var commands map[string]command

func init() {
	commands = map[string]command{
		"init":     runInit,
		"add":      runAdd,
		"update":   runUpdate,
		"release":  runRelease,
		"transfer": runTransfer,
		"show":     runShow,
		"list":     runList,
		"export":   runExport,
		"import":   runImport,
		"backup":   runBackup,
		"backups":  runBackups,
		"serve":    runServe,
	}
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("mortuary "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		_, _ = fmt.Fprintf(fs.Output(), "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return errUsage
	}
	return nil
}

func requireID(fs *flag.FlagSet, id string) error {
	if strings.TrimSpace(id) == "" {
		_, _ = fmt.Fprintln(fs.Output(), "-id is required")
		return errUsage
	}
	return nil
}

func runInit(_ context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	if err := parse(newFlagSet("init", stderr), args); err != nil {
		return err
	}
	_, err := fmt.Fprintf(stdout, "record table ready at %s\n", a.store.Location())
	return err
}

type inputFlag struct {
	name  string
	usage string
	field func(*core.RecordInput) *string
}

var inputFlags = []inputFlag{
	{"name", "deceased name (required)", func(in *core.RecordInput) *string { return &in.DeceasedName }},
	{"tag", "body tag number (required)", func(in *core.RecordInput) *string { return &in.BodyTagNo }},
	{"age", "age", func(in *core.RecordInput) *string { return &in.Age }},
	{"sex", "Male|Female|Other|Unknown", func(in *core.RecordInput) *string { return &in.Sex }},
	{"dod", "date of death YYYY-MM-DD (required)", func(in *core.RecordInput) *string { return &in.DodDate }},
	{"tod", "time of death HH:MM", func(in *core.RecordInput) *string { return &in.TodTime }},
	{"cause", "cause of death", func(in *core.RecordInput) *string { return &in.CauseOfDeath }},
	{"ward", "ward or unit", func(in *core.RecordInput) *string { return &in.WardUnit }},
	{"brought-by", "brought by", func(in *core.RecordInput) *string { return &in.BroughtBy }},
	{"admitted-date", "admission date YYYY-MM-DD (default now)", func(in *core.RecordInput) *string { return &in.AdmittedDate }},
	{"admitted-time", "admission time HH:MM", func(in *core.RecordInput) *string { return &in.AdmittedTime }},
	{"location", "storage location (required)", func(in *core.RecordInput) *string { return &in.StorageLocation }},
	{"kin", "next of kin", func(in *core.RecordInput) *string { return &in.NextOfKin }},
	{"kin-contact", "next of kin contact", func(in *core.RecordInput) *string { return &in.NextOfKinContact }},
	{"id-docs", "ID documents seen: Yes|No", func(in *core.RecordInput) *string { return &in.IDDocsSeen }},
	{"autopsy", "autopsy required: Yes|No|Pending", func(in *core.RecordInput) *string { return &in.AutopsyRequired }},
	{"autopsy-date", "autopsy date YYYY-MM-DD", func(in *core.RecordInput) *string { return &in.AutopsyDate }},
	{"status", "In Storage|Released|Transferred (update only)", func(in *core.RecordInput) *string { return &in.ReleaseStatus }},
	{"released-date", "release date YYYY-MM-DD (update only)", func(in *core.RecordInput) *string { return &in.ReleasedDate }},
	{"released-time", "release time HH:MM (update only)", func(in *core.RecordInput) *string { return &in.ReleasedTime }},
	{"released-to", "released to", func(in *core.RecordInput) *string { return &in.ReleasedTo }},
	{"remarks", "free text remarks", func(in *core.RecordInput) *string { return &in.Remarks }},
}

func bindInput(fs *flag.FlagSet, in *core.RecordInput) {
	for _, f := range inputFlags {
		fs.StringVar(f.field(in), f.name, "", f.usage)
	}
}

func runAdd(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("add", stderr)
	var in core.RecordInput
	bindInput(fs, &in)
	if err := parse(fs, args); err != nil {
		return err
	}
	rec, err := a.svc.Create(ctx, in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, rec.RecordID)
	return err
}

// runUpdate edits only the fields named on the command line; everything
// else keeps its stored value.
func runUpdate(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("update", stderr)
	id := fs.String("id", "", "record id")
	var given core.RecordInput
	bindInput(fs, &given)
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}
	current, err := a.svc.Get(ctx, *id)
	if err != nil {
		return err
	}
	in := core.InputFromRecord(current)
	byName := make(map[string]inputFlag, len(inputFlags))
	for _, f := range inputFlags {
		byName[f.name] = f
	}
	fs.Visit(func(fl *flag.Flag) {
		if f, ok := byName[fl.Name]; ok {
			*f.field(&in) = *f.field(&given)
		}
	})
	rec, err := a.svc.Update(ctx, *id, in)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "updated %s (%s)\n", rec.RecordID, rec.ReleaseStatus)
	return err
}

func runRelease(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	return runTransition(ctx, "release", a.svc.MarkReleased, args, stdout, stderr)
}

func runTransfer(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	return runTransition(ctx, "transfer", a.svc.MarkTransferred, args, stdout, stderr)
}

func runTransition(ctx context.Context, name string, fn func(context.Context, string) (domain.Record, error), args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet(name, stderr)
	id := fs.String("id", "", "record id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}
	rec, err := fn(ctx, *id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%s %s at %s\n", rec.Label(), strings.ToLower(rec.ReleaseStatus), rec.ReleasedDT)
	return err
}

func runShow(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("show", stderr)
	id := fs.String("id", "", "record id")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireID(fs, *id); err != nil {
		return err
	}
	rec, err := a.svc.Get(ctx, *id)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, col := range domain.Columns {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", col, rec.Get(col))
	}
	return tw.Flush()
}

type filterFlags struct {
	status, sex, dodFrom, dodTo, text, location, cause string
}

func (f *filterFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.status, "status", "", "comma separated release statuses")
	fs.StringVar(&f.sex, "sex", "", "comma separated sexes")
	fs.StringVar(&f.dodFrom, "dod-from", "", "earliest date of death YYYY-MM-DD")
	fs.StringVar(&f.dodTo, "dod-to", "", "latest date of death YYYY-MM-DD")
	fs.StringVar(&f.text, "q", "", "search name, tag number and next of kin")
	fs.StringVar(&f.location, "location", "", "storage location contains")
	fs.StringVar(&f.cause, "cause", "", "cause of death contains")
}

func (f *filterFlags) filter(out io.Writer) (core.Filter, error) {
	filter, err := core.ParseFilter(map[string][]string{
		"status":   {f.status},
		"sex":      {f.sex},
		"dod_from": {f.dodFrom},
		"dod_to":   {f.dodTo},
		"q":        {f.text},
		"location": {f.location},
		"cause":    {f.cause},
	})
	if err != nil {
		_, _ = fmt.Fprintln(out, err)
		return core.Filter{}, errUsage
	}
	return filter, nil
}

func runList(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("list", stderr)
	var ff filterFlags
	ff.bind(fs)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	f, err := ff.filter(stderr)
	if err != nil {
		return err
	}
	records, err := a.svc.Find(ctx, f)
	if err != nil {
		return err
	}
	if *asJSON {
		if records == nil {
			records = []domain.Record{}
		}
		return json.NewEncoder(stdout).Encode(records)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTAG\tNAME\tSTATUS\tLOCATION\tADMITTED")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			domain.ShortID(r.RecordID), r.BodyTagNo, r.DeceasedName, r.ReleaseStatus, r.StorageLocation, r.AdmittedDT)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%d of %d shown\n", len(records), a.total(ctx))
	return err
}

func (a *app) total(ctx context.Context) int {
	all, err := a.svc.Records(ctx)
	if err != nil {
		return 0
	}
	return len(all)
}

func runExport(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("export", stderr)
	var ff filterFlags
	ff.bind(fs)
	formatName := fs.String("format", "", "csv|xlsx|json (default from -o extension, else csv)")
	outPath := fs.String("o", "", "output file, or a directory to use the default file name; stdout when blank")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *formatName == "" && *outPath != "" {
		*formatName = filepath.Ext(*outPath)
	}
	format, ferr := tabular.ParseFormat(*formatName)
	if ferr != nil {
		_, _ = fmt.Fprintln(stderr, ferr)
		return errUsage
	}
	f, err := ff.filter(stderr)
	if err != nil {
		return err
	}
	if *outPath == "" {
		_, err = a.svc.Export(ctx, stdout, f, format)
		return err
	}
	target := *outPath
	if info, serr := os.Stat(target); serr == nil && info.IsDir() {
		target = filepath.Join(target, core.ExportFileName(f, format))
	}
	file, err := os.Create(target) // #nosec G304: operator supplied output path
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	n, err := a.svc.Export(ctx, file, f, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stderr, "exported %d records to %s\n", n, target)
	return err
}

func runImport(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("import", stderr)
	path := fs.String("file", "", "csv, xlsx or json file to import")
	formatName := fs.String("format", "", "csv|xlsx|json (default from file extension)")
	yes := fs.Bool("yes", false, "confirm replacing every existing record")
	if err := parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		_, _ = fmt.Fprintln(stderr, "-file is required")
		return errUsage
	}
	if *formatName == "" {
		*formatName = filepath.Ext(*path)
	}
	format, ferr := tabular.ParseFormat(*formatName)
	if ferr != nil {
		_, _ = fmt.Fprintln(stderr, ferr)
		return errUsage
	}
	if !*yes {
		_, _ = fmt.Fprintf(stderr, "import replaces all %d records in %s; rerun with -yes to confirm\n", a.total(ctx), a.store.Location())
		return errUsage
	}
	file, err := os.Open(*path) // #nosec G304: operator supplied input path
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()
	summary, err := a.svc.ImportReplace(ctx, file, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "imported %d records (%d ids assigned)\n", summary.Rows, summary.AssignedIDs)
	if err == nil && len(summary.MissingColumns) > 0 {
		_, err = fmt.Fprintf(stdout, "columns filled blank: %s\n", strings.Join(summary.MissingColumns, ", "))
	}
	if err == nil && len(summary.UnknownColumns) > 0 {
		_, err = fmt.Fprintf(stdout, "columns ignored: %s\n", strings.Join(summary.UnknownColumns, ", "))
	}
	return err
}

func runBackup(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	if err := parse(newFlagSet("backup", stderr), args); err != nil {
		return err
	}
	info, err := a.svc.Backup(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, info.Location)
	return err
}

func runBackups(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) error {
	if err := parse(newFlagSet("backups", stderr), args); err != nil {
		return err
	}
	list, err := a.svc.Backups(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, info := range list {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runServe(ctx context.Context, a *app, args []string, _, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	addr := fs.String("addr", a.cfg.HTTPAddr, "listen address")
	if err := parse(fs, args); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := httpapi.New(a.svc, a.metrics, a.log)
	errc := make(chan error, 1)
	go func() { errc <- server.Listen(*addr) }()
	a.log.Info("listening", zap.String("addr", *addr), zap.String("store", a.store.Location()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		return err
	}
	return <-errc
}
