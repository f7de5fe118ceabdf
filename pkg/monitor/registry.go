package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/rank"
	"amazon-monitor/pkg/utils"
)

// Searcher runs one product search. Satisfied by *scrape.Scraper.
type Searcher interface {
	Search(ctx context.Context, keyword, category string, maxPages int) ([]models.ProductRecord, error)
}

// Notifier delivers a ranking report by email. Configured reports whether
// sender credentials are present; an unconfigured notifier is skipped
// silently rather than treated as a failure.
type Notifier interface {
	Configured() bool
	SendReport(ctx context.Context, to, keyword string, result models.RankingResult) error
}

// Registry owns the monitor collection: definitions, execution, and the
// append-only run history. All collaborators are injected.
type Registry struct {
	store        *Store
	searcher     Searcher
	notifier     Notifier
	defaultPages int
	log          *logrus.Logger
}

// NewRegistry wires a registry. notifier may be nil when email delivery is
// not configured.
func NewRegistry(store *Store, searcher Searcher, notifier Notifier, defaultPages int, log *logrus.Logger) *Registry {
	if defaultPages <= 0 {
		defaultPages = 3
	}
	return &Registry{
		store:        store,
		searcher:     searcher,
		notifier:     notifier,
		defaultPages: defaultPages,
		log:          log,
	}
}

// Add creates a monitor definition and persists it. New monitors start
// active with no last-run timestamp.
func (r *Registry) Add(keyword, category, email, frequency string) (models.MonitorDefinition, error) {
	if keyword == "" {
		return models.MonitorDefinition{}, fmt.Errorf("monitor keyword must not be empty")
	}
	switch frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
	case "":
		frequency = models.FrequencyDaily
	default:
		return models.MonitorDefinition{}, fmt.Errorf("unknown frequency %q", frequency)
	}

	now := time.Now()
	m := models.MonitorDefinition{
		ID:        fmt.Sprintf("monitor_%d_%d", r.store.MonitorCount()+1, now.Unix()),
		Keyword:   keyword,
		Category:  category,
		Email:     email,
		Frequency: frequency,
		CreatedAt: now,
		Active:    true,
	}
	if err := r.store.AppendMonitor(m); err != nil {
		return models.MonitorDefinition{}, err
	}

	r.log.WithFields(logrus.Fields{
		"monitor_id": m.ID,
		"keyword":    keyword,
		"frequency":  frequency,
	}).Info("Monitor created")
	return m, nil
}

// List returns all monitor definitions.
func (r *Registry) List() []models.MonitorDefinition {
	return r.store.Monitors()
}

// Get returns the monitor with the given id.
func (r *Registry) Get(id string) (models.MonitorDefinition, error) {
	m, ok := r.store.FindMonitor(id)
	if !ok {
		return models.MonitorDefinition{}, fmt.Errorf("%w: %s", utils.ErrMonitorNotFound, id)
	}
	return m, nil
}

// SetActive flips the active flag on a monitor and persists. It touches
// nothing else on the definition.
func (r *Registry) SetActive(id string, active bool) error {
	m, ok := r.store.FindMonitor(id)
	if !ok {
		return fmt.Errorf("%w: %s", utils.ErrMonitorNotFound, id)
	}
	m.Active = active
	if _, err := r.store.UpdateMonitor(m); err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"monitor_id": id, "active": active}).Info("Monitor updated")
	return nil
}

// Remove hard-deletes a monitor definition. Run records for the id stay in
// the history collection.
func (r *Registry) Remove(id string) error {
	removed, err := r.store.RemoveMonitor(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", utils.ErrMonitorNotFound, id)
	}
	r.log.WithField("monitor_id", id).Info("Monitor removed")
	return nil
}

// History returns run records for one monitor, or all records when id is
// empty.
func (r *Registry) History(id string) []models.RunRecord {
	return r.store.History(id)
}

// Execute runs a monitor once: search, rank, record, optionally notify.
// A run record is appended whether the search succeeds or fails; the
// last-run timestamp advances only on success. An unknown id appends
// nothing.
func (r *Registry) Execute(ctx context.Context, id string) (models.RunResult, error) {
	m, ok := r.store.FindMonitor(id)
	if !ok {
		return models.RunResult{MonitorID: id, Error: "monitor not found"},
			fmt.Errorf("%w: %s", utils.ErrMonitorNotFound, id)
	}
	if !m.Active {
		return models.RunResult{MonitorID: id, Keyword: m.Keyword, Error: "monitor is disabled"},
			fmt.Errorf("%w: %s", utils.ErrMonitorDisabled, id)
	}

	log := r.log.WithFields(logrus.Fields{"monitor_id": id, "keyword": m.Keyword})
	log.Info("Running monitor")

	now := time.Now()
	rec := models.RunRecord{
		ID:        uuid.NewString(),
		MonitorID: id,
		Keyword:   m.Keyword,
		Timestamp: now,
	}

	products, err := r.searcher.Search(ctx, m.Keyword, m.Category, r.defaultPages)
	if err != nil {
		rec.Error = err.Error()
		if appendErr := r.store.AppendRun(rec); appendErr != nil {
			log.WithError(appendErr).Error("Failed to persist run record")
		}
		log.WithError(err).Error("Monitor run failed")
		return models.RunResult{MonitorID: id, Keyword: m.Keyword, Error: err.Error()}, err
	}

	result := rank.Analyze(products)
	rec.Success = true
	rec.Result = &result

	out := models.RunResult{
		Success:       true,
		MonitorID:     id,
		Keyword:       m.Keyword,
		ProductsFound: len(products),
		Result:        &result,
	}

	if m.Email != "" && r.notifier != nil && r.notifier.Configured() {
		if err := r.notifier.SendReport(ctx, m.Email, m.Keyword, result); err != nil {
			log.WithError(err).Warn("Report email failed")
		} else {
			out.EmailSent = true
			log.WithField("to", m.Email).Info("Report email sent")
		}
	}

	if err := r.store.AppendRun(rec); err != nil {
		return out, err
	}

	m.LastRun = &now
	if _, err := r.store.UpdateMonitor(m); err != nil {
		return out, err
	}

	log.WithFields(logrus.Fields{
		"products_found": out.ProductsFound,
		"email_sent":     out.EmailSent,
	}).Info("Monitor run complete")
	return out, nil
}
