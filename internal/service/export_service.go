package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
	"github.com/veritas-ponto/veritas-api/pkg/export"
)

// Report output formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Each absence day weighs three class periods in the official tally.
const periodsPerAbsence = 3

type reportActivityRepository interface {
	ListAllBetween(ctx context.Context, from, to time.Time, turma string) ([]models.Activity, error)
}

type reportAbsenceRepository interface {
	List(ctx context.Context, filter models.AbsenceFilter) ([]models.Absence, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ReportFile is a rendered report ready for download.
type ReportFile struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService builds the monthly frequency and absence reports.
type ExportService struct {
	activities reportActivityRepository
	absences   reportAbsenceRepository
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs the export service. Nil renderers fall
// back to the default exporters.
func NewExportService(activities reportActivityRepository, absences reportAbsenceRepository, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{activities: activities, absences: absences, csv: csv, pdf: pdf, logger: logger}
}

// FrequencyReport renders one row per user per day, pairing the first
// entry with the last exit of that local day.
func (s *ExportService) FrequencyReport(ctx context.Context, month, turma, format string) (*ReportFile, error) {
	from, to, err := monthBounds(month)
	if err != nil {
		return nil, err
	}

	activities, err := s.activities.ListAllBetween(ctx, from, to, turma)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activities")
	}

	type dayKey struct {
		userID int64
		date   string
	}
	type dayRow struct {
		cabine string
		nome   string
		turma  string
		date   string
		first  *time.Time
		last   *time.Time
	}

	days := map[dayKey]*dayRow{}
	order := []dayKey{}
	for i := range activities {
		a := activities[i]
		local := a.Timestamp.Local()
		key := dayKey{userID: a.UserID, date: local.Format(models.DateLayout)}
		row, ok := days[key]
		if !ok {
			row = &dayRow{cabine: a.UserCabine, nome: a.UserName, turma: a.UserTurma, date: key.date}
			days[key] = row
			order = append(order, key)
		}
		switch a.Type {
		case models.ActivityEntrada:
			if row.first == nil || local.Before(*row.first) {
				t := local
				row.first = &t
			}
		case models.ActivitySaida:
			if row.last == nil || local.After(*row.last) {
				t := local
				row.last = &t
			}
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Cabine", "Nome", "Turma", "Data", "Entrada", "Saída"},
		Rows:    make([]map[string]string, 0, len(order)),
	}
	for _, key := range order {
		row := days[key]
		date, _ := time.ParseInLocation(models.DateLayout, row.date, time.Local)
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Cabine":  row.cabine,
			"Nome":    row.nome,
			"Turma":   row.turma,
			"Data":    date.Format("02/01/2006"),
			"Entrada": formatClock(row.first),
			"Saída":   formatClock(row.last),
		})
	}

	title := fmt.Sprintf("Relatório de Frequência %s", month)
	return s.render(dataset, title, fmt.Sprintf("frequencia-%s", month), format)
}

// AbsenceReport renders one row per user with the period-weighted
// absence total and the list of missed days.
func (s *ExportService) AbsenceReport(ctx context.Context, month, turma, format string) (*ReportFile, error) {
	if _, _, err := monthBounds(month); err != nil {
		return nil, err
	}

	absences, err := s.absences.List(ctx, models.AbsenceFilter{Month: month, Turma: turma})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}

	type userAbsences struct {
		nome  string
		dates []string
	}
	byUser := map[int64]*userAbsences{}
	ids := []int64{}
	for _, a := range absences {
		entry, ok := byUser[a.UserID]
		if !ok {
			entry = &userAbsences{nome: a.UserName}
			byUser[a.UserID] = entry
			ids = append(ids, a.UserID)
		}
		date, parseErr := time.ParseInLocation(models.DateLayout, a.Date, time.Local)
		if parseErr != nil {
			continue
		}
		entry.dates = append(entry.dates, date.Format("02/01"))
	}
	sort.Slice(ids, func(i, j int) bool { return byUser[ids[i]].nome < byUser[ids[j]].nome })

	dataset := export.Dataset{
		Headers: []string{"Nome", "Qtd Faltas", "Dias das Faltas"},
		Rows:    make([]map[string]string, 0, len(ids)),
	}
	for _, id := range ids {
		entry := byUser[id]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Nome":            entry.nome,
			"Qtd Faltas":      fmt.Sprintf("%d", len(entry.dates)*periodsPerAbsence),
			"Dias das Faltas": strings.Join(entry.dates, ", "),
		})
	}

	title := fmt.Sprintf("Relatório de Faltas %s", month)
	return s.render(dataset, title, fmt.Sprintf("faltas-%s", month), format)
}

func (s *ExportService) render(dataset export.Dataset, title, basename, format string) (*ReportFile, error) {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ReportFile{Content: content, ContentType: "text/csv", Filename: basename + ".csv"}, nil
	case FormatPDF:
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ReportFile{Content: content, ContentType: "application/pdf", Filename: basename + ".pdf"}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

// monthBounds parses "YYYY-MM" into the half-open local month range.
func monthBounds(month string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid month, expected YYYY-MM")
	}
	return start, start.AddDate(0, 1, 0), nil
}

func formatClock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04")
}
