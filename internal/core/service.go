// Package core implements the mortuary record lifecycle on top of a
// domain.RecordStore: validation, create and edit flows, the release and
// transfer quick actions, filtering, backups, and table import/export.
package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	blobcore "mortuary/internal/infra/blob/core"
	"mortuary/pkg/domain"
)

// RecordInput carries the editable fields of a record as collected from a
// form, flag set or JSON body. Dates are YYYY-MM-DD and times HH:MM.
type RecordInput struct {
	BodyTagNo        string `json:"body_tag_no"`
	DeceasedName     string `json:"deceased_name"`
	Age              string `json:"age"`
	Sex              string `json:"sex"`
	DodDate          string `json:"dod_date"`
	TodTime          string `json:"tod_time"`
	CauseOfDeath     string `json:"cause_of_death"`
	WardUnit         string `json:"ward_unit"`
	BroughtBy        string `json:"brought_by"`
	AdmittedDate     string `json:"admitted_date"`
	AdmittedTime     string `json:"admitted_time"`
	StorageLocation  string `json:"storage_location"`
	NextOfKin        string `json:"next_of_kin"`
	NextOfKinContact string `json:"next_of_kin_contact"`
	IDDocsSeen       string `json:"id_docs_seen"`
	AutopsyRequired  string `json:"autopsy_required"`
	AutopsyDate      string `json:"autopsy_date"`
	ReleaseStatus    string `json:"release_status"`
	ReleasedDate     string `json:"released_date"`
	ReleasedTime     string `json:"released_time"`
	ReleasedTo       string `json:"released_to"`
	Remarks          string `json:"remarks"`
}

// InputFromRecord pre-fills an edit form from an existing record.
func InputFromRecord(r domain.Record) RecordInput {
	in := RecordInput{
		BodyTagNo:        r.BodyTagNo,
		DeceasedName:     r.DeceasedName,
		Age:              r.Age,
		Sex:              r.Sex,
		DodDate:          r.DodDate,
		TodTime:          r.TodTime,
		CauseOfDeath:     r.CauseOfDeath,
		WardUnit:         r.WardUnit,
		BroughtBy:        r.BroughtBy,
		StorageLocation:  r.StorageLocation,
		NextOfKin:        r.NextOfKin,
		NextOfKinContact: r.NextOfKinContact,
		IDDocsSeen:       r.IDDocsSeen,
		AutopsyRequired:  r.AutopsyRequired,
		AutopsyDate:      r.AutopsyDate,
		ReleaseStatus:    r.ReleaseStatus,
		ReleasedTo:       r.ReleasedTo,
		Remarks:          r.Remarks,
	}
	if t, err := domain.ParseTimestamp(r.AdmittedDT); err == nil {
		in.AdmittedDate, in.AdmittedTime = domain.FormatDate(t), domain.FormatClock(t)
	}
	if t, err := domain.ParseTimestamp(r.ReleasedDT); err == nil {
		in.ReleasedDate, in.ReleasedTime = domain.FormatDate(t), domain.FormatClock(t)
	}
	return in
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone timestamps are rendered in (default time.Local).
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithBackupStore sets the destination used by Backup and Backups.
func WithBackupStore(b blobcore.Store) Option {
	return func(s *Service) { s.backups = b }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Service is the single designated writer for a record store. Every mutation
// is a locked load-modify-save cycle and saves carry the revision they were
// loaded at, so a concurrent writer in another process surfaces as
// domain.ErrRevisionConflict instead of a lost update.
type Service struct {
	store   domain.RecordStore
	backups blobcore.Store
	logger  *zap.Logger
	metrics MetricsRecorder
	now     func() time.Time
	loc     *time.Location
	newID   func() string
	mu      sync.Mutex
}

// NewService wires a service over store.
func NewService(store domain.RecordStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		now:     time.Now,
		loc:     time.Local,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying record store.
func (s *Service) Store() domain.RecordStore { return s.store }

// BackupStore returns the configured backup destination, or nil.
func (s *Service) BackupStore() blobcore.Store { return s.backups }

// Location returns the zone timestamps are rendered in.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) clock() time.Time { return s.now().In(s.loc) }

// observe wraps an operation with metrics and error logging.
func (s *Service) observe(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.logger.Warn("operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

// Initialize prepares the underlying store.
func (s *Service) Initialize(ctx context.Context) error {
	return s.observe(ctx, "initialize", func() error {
		if err := s.store.Initialize(ctx); err != nil {
			return err
		}
		s.logger.Info("record store ready", zap.String("location", s.store.Location()))
		return nil
	})
}

// load reads the table and normalizes enumerated values. Coercions are
// reported, not written back; the next save persists the normalized rows.
func (s *Service) load(ctx context.Context) (domain.Table, error) {
	tbl, err := s.store.LoadAll(ctx)
	if err != nil {
		return domain.Table{}, err
	}
	records, coercions := domain.NormalizeAll(tbl.Records)
	s.reportCoercions("load", coercions)
	s.metrics.RecordCount(len(records))
	return domain.Table{Records: records, Revision: tbl.Revision}, nil
}

func (s *Service) reportCoercions(source string, coercions []domain.Coercion) {
	for _, c := range coercions {
		s.metrics.Coerced(c.Column)
		s.logger.Warn("enumerated value coerced to default",
			zap.String("source", source),
			zap.String("record_id", c.RecordID),
			zap.String("column", c.Column),
			zap.String("from", c.From),
			zap.String("to", c.To),
		)
	}
}

// Records returns every record in stored order.
func (s *Service) Records(ctx context.Context) ([]domain.Record, error) {
	var out []domain.Record
	err := s.observe(ctx, "records", func() error {
		tbl, err := s.load(ctx)
		out = tbl.Records
		return err
	})
	return out, err
}

// Find returns the records matching f in stored order.
func (s *Service) Find(ctx context.Context, f Filter) ([]domain.Record, error) {
	var out []domain.Record
	err := s.observe(ctx, "find", func() error {
		tbl, err := s.load(ctx)
		if err != nil {
			return err
		}
		out = f.Apply(tbl.Records)
		return nil
	})
	return out, err
}

// Get returns the record with the full id. Short ids are never resolved.
func (s *Service) Get(ctx context.Context, id string) (domain.Record, error) {
	var out domain.Record
	err := s.observe(ctx, "get", func() error {
		tbl, err := s.load(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(tbl.Records, id)
		if idx < 0 {
			return ErrNotFound{ID: id}
		}
		out = tbl.Records[idx]
		return nil
	})
	return out, err
}

func indexOf(records []domain.Record, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i, r := range records {
		if r.RecordID == id {
			return i
		}
	}
	return -1
}

// mutate runs one locked load-modify-save cycle. fn receives the loaded
// records and returns the full replacement set plus the affected record.
func (s *Service) mutate(ctx context.Context, op string, fn func(records []domain.Record) ([]domain.Record, domain.Record, error)) (domain.Record, error) {
	var out domain.Record
	err := s.observe(ctx, op, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		tbl, err := s.load(ctx)
		if err != nil {
			return err
		}
		next, rec, err := fn(tbl.Clone().Records)
		if err != nil {
			return err
		}
		rev, err := s.store.SaveAll(ctx, next, tbl.Revision)
		if err != nil {
			return err
		}
		s.metrics.RecordCount(len(next))
		s.logger.Info("record saved",
			zap.String("operation", op),
			zap.String("record_id", rec.RecordID),
			zap.String("release_status", rec.ReleaseStatus),
			zap.String("revision", rev),
		)
		out = rec
		return nil
	})
	return out, err
}

// Create validates in and appends a new record. The record starts In
// Storage with empty release fields; admission defaults to now.
func (s *Service) Create(ctx context.Context, in RecordInput) (domain.Record, error) {
	if err := ValidateInput(in); err != nil {
		s.metrics.Observe(ctx, "create", false, 0)
		return domain.Record{}, err
	}
	return s.mutate(ctx, "create", func(records []domain.Record) ([]domain.Record, domain.Record, error) {
		now := s.clock()
		rec := s.applyInput(domain.Record{RecordID: s.uniqueID(records)}, in)
		rec.AdmittedDT = s.admittedAt(in, now)
		rec.ReleaseStatus = string(domain.StatusInStorage)
		rec.ReleasedDT = ""
		rec.ReleasedTo = ""
		rec.LastUpdated = domain.FormatSecond(now)
		return append(records, rec), rec, nil
	})
}

// Update rewrites every field of the record except record_id and
// admitted_dt. Release fields are recomputed from the input and forced empty
// when the new status is In Storage.
func (s *Service) Update(ctx context.Context, id string, in RecordInput) (domain.Record, error) {
	if err := ValidateInput(in); err != nil {
		s.metrics.Observe(ctx, "update", false, 0)
		return domain.Record{}, err
	}
	return s.mutate(ctx, "update", func(records []domain.Record) ([]domain.Record, domain.Record, error) {
		idx := indexOf(records, id)
		if idx < 0 {
			return nil, domain.Record{}, ErrNotFound{ID: id}
		}
		prev := records[idx]
		rec := s.applyInput(domain.Record{RecordID: prev.RecordID}, in)
		rec.AdmittedDT = prev.AdmittedDT
		rec.ReleaseStatus = s.coerce(prev.RecordID, domain.ColReleaseStatus, in.ReleaseStatus)
		if rec.InStorage() {
			rec.ReleasedDT = ""
			rec.ReleasedTo = ""
		} else {
			rec.ReleasedDT = domain.CombineDateTimeString(in.ReleasedDate, in.ReleasedTime, s.loc)
			rec.ReleasedTo = strings.TrimSpace(in.ReleasedTo)
		}
		rec.LastUpdated = s.stamp(prev.LastUpdated, s.clock())
		records[idx] = rec
		return records, rec, nil
	})
}

// MarkReleased is the release quick action.
func (s *Service) MarkReleased(ctx context.Context, id string) (domain.Record, error) {
	return s.transition(ctx, "release", id, domain.StatusReleased)
}

// MarkTransferred is the transfer quick action.
func (s *Service) MarkTransferred(ctx context.Context, id string) (domain.Record, error) {
	return s.transition(ctx, "transfer", id, domain.StatusTransferred)
}

// transition sets the status and stamps released_dt and last_updated. No
// other field changes; released_to keeps whatever it held.
func (s *Service) transition(ctx context.Context, op, id string, status domain.ReleaseStatus) (domain.Record, error) {
	return s.mutate(ctx, op, func(records []domain.Record) ([]domain.Record, domain.Record, error) {
		idx := indexOf(records, id)
		if idx < 0 {
			return nil, domain.Record{}, ErrNotFound{ID: id}
		}
		now := s.clock()
		rec := records[idx]
		rec.ReleaseStatus = string(status)
		rec.ReleasedDT = domain.FormatSecond(now)
		rec.LastUpdated = s.stamp(rec.LastUpdated, now)
		records[idx] = rec
		return records, rec, nil
	})
}

// applyInput copies the free-form and enumerated fields of in onto r.
func (s *Service) applyInput(r domain.Record, in RecordInput) domain.Record {
	id := r.RecordID
	r.BodyTagNo = strings.TrimSpace(in.BodyTagNo)
	r.DeceasedName = strings.TrimSpace(in.DeceasedName)
	r.Age = strings.TrimSpace(in.Age)
	r.Sex = s.coerce(id, domain.ColSex, in.Sex)
	r.DodDate = domain.NormalizeDate(in.DodDate)
	r.TodTime = domain.NormalizeClock(in.TodTime)
	r.CauseOfDeath = strings.TrimSpace(in.CauseOfDeath)
	r.WardUnit = strings.TrimSpace(in.WardUnit)
	r.BroughtBy = strings.TrimSpace(in.BroughtBy)
	r.StorageLocation = strings.TrimSpace(in.StorageLocation)
	r.NextOfKin = strings.TrimSpace(in.NextOfKin)
	r.NextOfKinContact = strings.TrimSpace(in.NextOfKinContact)
	r.IDDocsSeen = s.coerce(id, domain.ColIDDocsSeen, in.IDDocsSeen)
	r.AutopsyRequired = s.coerce(id, domain.ColAutopsyRequired, in.AutopsyRequired)
	r.AutopsyDate = domain.NormalizeDate(in.AutopsyDate)
	r.Remarks = strings.TrimSpace(in.Remarks)
	return r
}

// coerce maps an input value onto the column's option set. Blank input takes
// the default silently; any other unknown value is logged and counted.
func (s *Service) coerce(id, column, value string) string {
	value = strings.TrimSpace(value)
	options, _ := domain.EnumOptions(column)
	if canon, ok := domain.Canonical(options, value); ok {
		return canon
	}
	fallback := domain.EnumDefault(column)
	if value != "" {
		s.reportCoercions("input", []domain.Coercion{{RecordID: id, Column: column, From: value, To: fallback}})
	}
	return fallback
}

func (s *Service) admittedAt(in RecordInput, now time.Time) string {
	t, err := domain.CombineDateTime(in.AdmittedDate, in.AdmittedTime, s.loc)
	if err != nil {
		if strings.TrimSpace(in.AdmittedDate) != "" {
			s.logger.Warn("admission date unreadable, using now", zap.String("admitted_date", in.AdmittedDate), zap.Error(err))
		}
		t = now.Truncate(time.Minute)
	}
	return domain.FormatMinute(t)
}

// stamp returns now as a last_updated value, clamped so it never moves
// backwards past prev.
func (s *Service) stamp(prev string, now time.Time) string {
	if p, err := domain.ParseTimestamp(prev); err == nil && now.Before(p) {
		return domain.FormatSecond(p.In(s.loc))
	}
	return domain.FormatSecond(now)
}

// uniqueID draws ids until one is unused by records.
func (s *Service) uniqueID(records []domain.Record) string {
	for {
		id := s.newID()
		if id != "" && indexOf(records, id) < 0 {
			return id
		}
	}
}
