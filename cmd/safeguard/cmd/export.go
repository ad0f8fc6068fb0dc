package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recent records as YAML",
	Long: `Dump the most recent background check and training records to stdout or a
file. Useful for audits and for inspecting what the reconciliation engine has
recorded.`,
	RunE: runExport,
}

var (
	exportLimit int
	exportOut   string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVar(&exportLimit, "limit", 100,
		"maximum records per kind")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "",
		"output file (default: stdout)")
}

type exportCheck struct {
	ID           int64      `yaml:"id"`
	PersonRef    int64      `yaml:"person_ref"`
	RequestID    string     `yaml:"request_id,omitempty"`
	Package      string     `yaml:"package,omitempty"`
	Status       string     `yaml:"status"`
	RequestDate  time.Time  `yaml:"request_date"`
	ResponseDate *time.Time `yaml:"response_date,omitempty"`
	WorkflowID   *int64     `yaml:"workflow_id,omitempty"`
}

type exportTraining struct {
	ID          int64      `yaml:"id"`
	PersonRef   int64      `yaml:"person_ref"`
	SurveyCode  string     `yaml:"survey_code,omitempty"`
	Score       *int       `yaml:"score,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
	WorkflowID  *int64     `yaml:"workflow_id,omitempty"`
}

type exportDoc struct {
	ExportedAt time.Time        `yaml:"exported_at"`
	Checks     []exportCheck    `yaml:"checks"`
	Trainings  []exportTraining `yaml:"trainings"`
}

func runExport(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	rt, err := buildRuntime(logger)
	if err != nil {
		return err
	}
	defer rt.close()

	checks, err := rt.store.RecentChecks(cmd.Context(), exportLimit)
	if err != nil {
		return err
	}
	trainings, err := rt.store.RecentTrainings(cmd.Context(), exportLimit)
	if err != nil {
		return err
	}

	doc := exportDoc{
		ExportedAt: time.Now().UTC(),
		Checks:     make([]exportCheck, 0, len(checks)),
		Trainings:  make([]exportTraining, 0, len(trainings)),
	}
	for _, rec := range checks {
		doc.Checks = append(doc.Checks, exportCheck{
			ID:           rec.ID,
			PersonRef:    rec.PersonRef,
			RequestID:    rec.RequestID,
			Package:      rec.PackageName,
			Status:       string(rec.Status),
			RequestDate:  rec.RequestDate,
			ResponseDate: rec.ResponseDate,
			WorkflowID:   rec.WorkflowID,
		})
	}
	for _, rec := range trainings {
		doc.Trainings = append(doc.Trainings, exportTraining{
			ID:          rec.ID,
			PersonRef:   rec.PersonRef,
			SurveyCode:  rec.SurveyCode,
			Score:       rec.Score,
			CompletedAt: rec.CompletedAt,
			WorkflowID:  rec.WorkflowID,
		})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	if exportOut == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil { //nolint:gosec // Export is operator-readable data
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Printf("exported %d checks, %d trainings to %s\n",
		len(doc.Checks), len(doc.Trainings), exportOut)
	return nil
}
