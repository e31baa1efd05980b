package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
)

// WriteSummary prints the row count of every table, the stage outcomes and
// the diagnostic totals.
func WriteSummary(w io.Writer, r *Report) error {
	title := r.Title
	if title == "" {
		title = "Catálogo de servicios"
	}
	if _, err := fmt.Fprintf(w, "%s (%s)\nrun %s\n\n", title, r.Profile, r.RunID); err != nil {
		return err
	}

	counts := uitable.New()
	counts.MaxColWidth = 40
	counts.RightAlign(1)
	counts.AddRow("Tabla", "Registros")
	for _, c := range r.Counts {
		counts.AddRow(c.Label, c.Rows)
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", counts); err != nil {
		return err
	}

	stages := uitable.New()
	stages.MaxColWidth = 60
	stages.Wrap = true
	stages.RightAlign(2)
	stages.AddRow("Etapa", "Estado", "Filas", "Duración", "Error")
	for _, s := range r.Stages {
		stages.AddRow(s.Name, s.Status, s.Rows, s.Duration.Round(time.Millisecond), s.Error)
	}
	if _, err := fmt.Fprintf(w, "%s\n", stages); err != nil {
		return err
	}

	if totals := r.DiagnosticTotals(); len(totals) > 0 {
		diags := uitable.New()
		diags.RightAlign(1)
		diags.AddRow("Diagnóstico", "Total")
		for _, t := range totals {
			diags.AddRow(t.Code, t.Count)
		}
		if _, err := fmt.Fprintf(w, "\n%s\n", diags); err != nil {
			return err
		}
	}

	status := "COMPLETO"
	switch {
	case r.Fatal != nil:
		status = "ABORTADO: " + r.Fatal.Error()
	case !r.Complete():
		status = "PARCIAL"
	}
	_, err := fmt.Fprintf(w, "\nResultado: %s\n", status)
	return err
}
