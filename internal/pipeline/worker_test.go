package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"presucore/internal/budget"
	"presucore/internal/config"
	"presucore/internal/parser"
	"presucore/internal/store"
)

const sampleBudget = `PRESUPUESTO: Reforma de nave industrial
C01 MOVIMIENTO DE TIERRAS 15.000,00
C01.01 Excavaciones 9.000,00
E01ABC123 m3 Excavacion en zanjas 150,00 25,00 3.750,00
E01ABC124 m2 Relleno compactado 100,00 52,50 5.250,00
C02 ESTRUCTURAS 20.000,00
E02DEF001 kg Acero corrugado 2.000,00 1,20 2.400,00
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(filename string, data []byte) *Job {
	now := time.Now()
	job := &Job{
		ID:        store.NewID(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetFileData(data)
	return job
}

func TestWorker_IngestsTextBudget(t *testing.T) {
	st := store.New()
	w := NewWorker(st, discardLogger(), parser.Options{})

	job := newJob("obra.txt", []byte(sampleBudget))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (errors: %v)", snap.Status, snap.Progress.Errors)
	}
	if snap.ProjectID == "" {
		t.Fatal("no project recorded on job")
	}
	if snap.Progress.ElementsDetected != 6 || snap.Progress.NodesCreated != 6 {
		t.Errorf("counts: detected %d, created %d", snap.Progress.ElementsDetected, snap.Progress.NodesCreated)
	}

	proj, err := st.Project(snap.ProjectID)
	if err != nil {
		t.Fatalf("project: %v", err)
	}
	if proj.Name != "Reforma de nave industrial" {
		t.Errorf("project name: %q", proj.Name)
	}
	if proj.Status != budget.StatusCompleted {
		t.Errorf("project status: %q", proj.Status)
	}
	if proj.DocumentHash == "" || proj.DocumentName != "obra.txt" {
		t.Errorf("document metadata: %q %q", proj.DocumentName, proj.DocumentHash)
	}

	// 150×25 + 100×52.50 + 2000×1.20 = 11400.
	if proj.ComputedTotal == nil || !proj.ComputedTotal.Equal(decimal.RequireFromString("11400")) {
		t.Errorf("computed total: %v", proj.ComputedTotal)
	}
	// Declared grand total is the sum of top-level chapters.
	if proj.DeclaredTotal == nil || !proj.DeclaredTotal.Equal(decimal.RequireFromString("35000")) {
		t.Errorf("declared total: %v", proj.DeclaredTotal)
	}

	tree, err := st.TreeSnapshot(proj.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// C01.01's books match (9000); C01 and C02 do not.
	found := tree.FindDiscrepancies(budget.DefaultTolerance)
	if len(found) != 2 {
		t.Fatalf("expected 2 discrepancies, got %d: %+v", len(found), found)
	}
	if snap.Progress.Discrepancies != 2 {
		t.Errorf("job discrepancy count: %d", snap.Progress.Discrepancies)
	}

	// Cached computed totals on container concepts.
	c, err := st.Concept(proj.ID, "C01.01")
	if err != nil {
		t.Fatalf("concept: %v", err)
	}
	if c.ComputedTotal == nil || !c.ComputedTotal.Equal(decimal.RequireFromString("9000")) {
		t.Errorf("cached total for C01.01: %v", c.ComputedTotal)
	}
}

func TestPopulate_AmountOnlyRowUsesPrintedTotal(t *testing.T) {
	st := store.New()
	w := NewWorker(st, discardLogger(), parser.Options{})
	p, err := st.CreateProject("Obra", "")
	if err != nil {
		t.Fatalf("project: %v", err)
	}

	qty := decimal.RequireFromString("150")
	amount := decimal.RequireFromString("3750")
	declared := decimal.RequireFromString("3750")
	pb := &parser.ParsedBudget{Elements: []parser.Element{
		{Code: "C01", Kind: budget.KindChapter, Level: 1, DeclaredTotal: &declared},
		{Code: "E01ABC900", Kind: budget.KindLineItem, Level: 2, ParentCode: "C01",
			Quantity: &qty, Amount: &amount},
	}}
	if _, err := w.populate(p.ID, pb); err != nil {
		t.Fatalf("populate: %v", err)
	}

	// The printed amount already contains the quantity, so the position
	// contributes it once, not 150 times.
	root, _ := st.Root(p.ID)
	tree, _ := st.TreeSnapshot(p.ID)
	total, warnings, err := tree.ComputeTotal(root.ID)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", warnings)
	}
	if !total.Equal(amount) {
		t.Errorf("expected %s, got %s", amount, total)
	}

	c, err := st.Concept(p.ID, "E01ABC900")
	if err != nil {
		t.Fatalf("concept: %v", err)
	}
	if c.AccumAmount == nil || !c.AccumAmount.Equal(amount) {
		t.Errorf("accumulated amount: %v", c.AccumAmount)
	}
	if c.AccumQuantity == nil || !c.AccumQuantity.Equal(qty) {
		t.Errorf("accumulated quantity: %v", c.AccumQuantity)
	}
}

func TestWorker_DuplicateUploadSkipped(t *testing.T) {
	st := store.New()
	w := NewWorker(st, discardLogger(), parser.Options{})

	first := newJob("obra.txt", []byte(sampleBudget))
	w.Process(context.Background(), first)
	if first.Snapshot().Status != StatusCompleted {
		t.Fatalf("first ingest failed: %+v", first.Snapshot())
	}

	second := newJob("obra-copia.txt", []byte(sampleBudget))
	w.Process(context.Background(), second)

	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected duplicate_skipped, got %s", snap.Status)
	}
	if snap.ProjectID != first.Snapshot().ProjectID {
		t.Errorf("duplicate should point at the existing project")
	}
	if len(st.ListProjects()) != 1 {
		t.Errorf("duplicate created a project")
	}
}

func TestWorker_IngestIntoExistingProject(t *testing.T) {
	st := store.New()
	w := NewWorker(st, discardLogger(), parser.Options{})

	proj, err := st.CreateProject("Destino", "")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	job := newJob("obra.txt", []byte(sampleBudget))
	job.ProjectID = proj.ID
	w.Process(context.Background(), job)

	if got := job.Snapshot(); got.Status != StatusCompleted || got.ProjectID != proj.ID {
		t.Fatalf("expected completion into %s, got %+v", proj.ID, got)
	}
	reread, _ := st.Project(proj.ID)
	if reread.Name != "Destino" {
		t.Errorf("existing project renamed: %q", reread.Name)
	}
	if reread.DocumentName != "obra.txt" {
		t.Errorf("document metadata not recorded: %q", reread.DocumentName)
	}
}

func TestWorker_FailsWithoutStructure(t *testing.T) {
	st := store.New()
	w := NewWorker(st, discardLogger(), parser.Options{})

	job := newJob("notas.txt", []byte("esto es una nota\nsin presupuesto\n"))
	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if len(st.ListProjects()) != 0 {
		t.Error("failed detection should not create a project")
	}
}

func TestWorker_UnsupportedExtension(t *testing.T) {
	st := store.New()
	w := NewWorker(st, discardLogger(), parser.Options{})

	job := newJob("obra.xyz", []byte("whatever"))
	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	st := store.New()
	cfg := config.Config{WorkerCount: 2, MaxQueueSize: 4, JobTTL: time.Hour}
	orch := NewOrchestrator(cfg, st, discardLogger())
	orch.Start(context.Background())
	defer orch.Stop()

	job := newJob("obra.txt", []byte(sampleBudget))
	if err := orch.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap := orch.GetJob(job.ID).Snapshot()
		if snap.Status == StatusCompleted {
			break
		}
		if snap.Status == StatusFailed {
			t.Fatalf("job failed: %v", snap.Progress.Errors)
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out in status %s", snap.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
