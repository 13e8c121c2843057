package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"presucore/internal/budget"
	"presucore/internal/parser"
	"presucore/internal/store"
)

// Worker processes a single budget document job: parse, detect structure,
// populate the project tree, compute totals and flag discrepancies.
type Worker struct {
	store     *store.Store
	log       *slog.Logger
	parseOpts parser.Options
}

func NewWorker(st *store.Store, log *slog.Logger, opts parser.Options) *Worker {
	return &Worker{store: st, log: log, parseOpts: opts}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parseOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Hash the parsed text, not the raw bytes, so the same budget saved
	// through different tools still dedups.
	job.ContentHash = ContentHashHex([]byte(doc.Text()))
	if existing, found := w.store.FindProjectByHash(job.ContentHash); found {
		log.Info("duplicate document, skipping", "existing_project_id", existing.ID)
		job.SetProjectID(existing.ID)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	if ctx.Err() != nil {
		job.AddError(ctx.Err().Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2: Detect structure
	job.SetStatus(StatusStructure, "detecting_structure")
	pb := parser.Detect(doc)
	if len(pb.Elements) == 0 {
		log.Warn("no budget structure detected")
		job.AddError("no budget structure detected")
		job.SetStatus(StatusFailed, "detecting_structure")
		return
	}
	log.Info("structure detected", "elements", len(pb.Elements), "title", pb.Title)

	// Phase 3: Populate project. Ingest targets an existing project when
	// the job names one; otherwise a project is created from the document.
	job.SetStatus(StatusPopulating, "populating")
	title := job.Title
	if title == "" {
		title = pb.Title
	}
	if title == "" {
		title = strings.TrimSuffix(job.Filename, filepath.Ext(job.Filename))
	}

	var proj budget.Project
	if job.ProjectID != "" {
		proj, err = w.store.Project(job.ProjectID)
	} else {
		proj, err = w.store.CreateProject(title, "")
	}
	if err != nil {
		log.Error("project unavailable", "error", err)
		job.AddError(fmt.Sprintf("project: %s", err))
		job.SetStatus(StatusFailed, "populating")
		return
	}
	job.SetProjectID(proj.ID)

	if _, err := w.store.UpdateProject(proj.ID, func(p *budget.Project) {
		p.DocumentName = job.Filename
		p.DocumentHash = job.ContentHash
		p.PageCount = doc.Pages
		p.Status = budget.StatusProcessing
		p.Phase = 1
	}); err != nil {
		log.Error("project update failed", "error", err)
	}

	created, err := w.populate(proj.ID, pb)
	if err != nil {
		log.Error("populate failed", "error", err)
		job.AddError(fmt.Sprintf("populate: %s", err))
		w.markFailed(proj.ID)
		job.SetStatus(StatusFailed, "populating")
		return
	}
	log.Info("tree populated", "nodes", created)

	// Phase 4: Totals and discrepancies
	job.SetStatus(StatusTotals, "computing_totals")
	tree, err := w.store.TreeSnapshot(proj.ID)
	if err != nil {
		job.AddError(fmt.Sprintf("snapshot: %s", err))
		w.markFailed(proj.ID)
		job.SetStatus(StatusFailed, "computing_totals")
		return
	}

	totals, warnings := tree.ComputeAllTotals()
	for _, warn := range warnings {
		log.Warn("zero contribution", "node_id", warn.NodeID, "concept", warn.ConceptCode)
	}

	byCode := make(map[string]decimal.Decimal)
	for id, total := range totals {
		n := tree.Nodes[id]
		if c, ok := tree.Concepts[n.ConceptCode]; ok && c.Kind.IsContainer() {
			byCode[n.ConceptCode] = total
		}
	}
	if err := w.store.CacheComputedTotals(proj.ID, byCode); err != nil {
		log.Error("total cache failed", "error", err)
	}

	discrepancies := tree.FindDiscrepancies(budget.DefaultTolerance)
	job.SetCounts(len(pb.Elements), created, len(discrepancies))

	rootTotal := decimal.Zero
	if root, err := w.store.Root(proj.ID); err == nil {
		rootTotal = totals[root.ID]
	}
	declared := declaredGrandTotal(pb)
	if _, err := w.store.UpdateProject(proj.ID, func(p *budget.Project) {
		p.Status = budget.StatusCompleted
		p.Phase = 2
		t := rootTotal
		p.ComputedTotal = &t
		if declared != nil {
			p.DeclaredTotal = declared
		}
	}); err != nil {
		log.Error("project finalize failed", "error", err)
	}

	log.Info("ingest complete", "project_id", proj.ID,
		"computed_total", rootTotal.String(), "discrepancies", len(discrepancies))
	job.SetStatus(StatusCompleted, "done")
}

// populate writes detected elements into the store as concepts plus nodes.
// Containers register themselves so later rows can hang from them; rows
// whose parent was never seen fall back to the project root.
func (w *Worker) populate(projectID string, pb *parser.ParsedBudget) (int, error) {
	root, err := w.store.Root(projectID)
	if err != nil {
		return 0, err
	}

	nodeByCode := map[string]string{"": root.ID}
	created := 0

	for _, el := range pb.Elements {
		c := budget.Concept{
			ProjectID:     projectID,
			Code:          el.Code,
			Kind:          el.Kind,
			Name:          el.Name,
			Summary:       el.Name,
			Unit:          el.Unit,
			UnitPrice:     el.UnitPrice,
			DeclaredTotal: el.DeclaredTotal,
		}
		// A row printing an amount but no unit price carries its whole
		// total in the amount column; the printed quantity is already
		// folded into it, so the node gets quantity 1.
		amountOnly := el.UnitPrice == nil && el.Amount != nil
		if amountOnly {
			c.AccumAmount = el.Amount
			c.AccumQuantity = el.Quantity
		}
		if _, err := w.store.PutConcept(c, false); err != nil {
			return created, fmt.Errorf("concept %s: %w", el.Code, err)
		}

		parentID, ok := nodeByCode[el.ParentCode]
		if !ok {
			parentID = root.ID
		}
		qty := decimal.NewFromInt(1)
		if el.Quantity != nil && !amountOnly {
			qty = *el.Quantity
		}
		node, err := w.store.InsertNode(projectID, &parentID, el.Code, nil, qty)
		if err != nil {
			return created, fmt.Errorf("node %s: %w", el.Code, err)
		}
		created++
		if el.Kind.IsContainer() {
			nodeByCode[el.Code] = node.ID
		}
	}
	return created, nil
}

func (w *Worker) markFailed(projectID string) {
	if _, err := w.store.UpdateProject(projectID, func(p *budget.Project) {
		p.Status = budget.StatusFailed
	}); err != nil {
		w.log.Error("status update failed", "project_id", projectID, "error", err)
	}
}

// declaredGrandTotal sums the declared totals of top-level chapters, which
// is the closest thing printed documents have to a grand total.
func declaredGrandTotal(pb *parser.ParsedBudget) *decimal.Decimal {
	sum := decimal.Zero
	found := false
	for _, el := range pb.Elements {
		if el.Kind == budget.KindChapter && el.ParentCode == "" && el.DeclaredTotal != nil {
			sum = sum.Add(*el.DeclaredTotal)
			found = true
		}
	}
	if !found {
		return nil
	}
	return &sum
}
