package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-progress-api/internal/models"
)

// CatalogRepository reads programs, modules and their curriculum assignment.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// FindProgram loads a program by id.
func (r *CatalogRepository) FindProgram(ctx context.Context, id int64) (*models.Program, error) {
	var program models.Program
	const query = `SELECT id, name, degree, nominal_semesters FROM programs WHERE id = $1`
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, fmt.Errorf("find program: %w", err)
	}
	return &program, nil
}

// FindModule loads a module by id.
func (r *CatalogRepository) FindModule(ctx context.Context, id int64) (*models.Module, error) {
	var module models.Module
	const query = `SELECT id, name, ects, description FROM modules WHERE id = $1`
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		return nil, fmt.Errorf("find module: %w", err)
	}
	return &module, nil
}

// FindProgramModule resolves the curriculum row of a module within a program.
// tx may be nil.
func (r *CatalogRepository) FindProgramModule(ctx context.Context, tx *sqlx.Tx, programID, moduleID int64) (*models.CurriculumEntry, error) {
	var entry models.CurriculumEntry
	const query = `
SELECT pm.program_id, pm.module_id, pm.semester, pm.requirement_kind, pm.elective_group,
       m.name AS module_name, m.ects
FROM program_modules pm
JOIN modules m ON m.id = pm.module_id
WHERE pm.program_id = $1 AND pm.module_id = $2`
	if err := sqlx.GetContext(ctx, executor(r.db, tx), &entry, query, programID, moduleID); err != nil {
		return nil, fmt.Errorf("find program module: %w", err)
	}
	return &entry, nil
}

// ListElectives returns every elective curriculum row of a program ordered
// by semester, group and module name.
func (r *CatalogRepository) ListElectives(ctx context.Context, programID int64) ([]models.CurriculumEntry, error) {
	var entries []models.CurriculumEntry
	const query = `
SELECT pm.program_id, pm.module_id, pm.semester, pm.requirement_kind, pm.elective_group,
       m.name AS module_name, m.ects
FROM program_modules pm
JOIN modules m ON m.id = pm.module_id
WHERE pm.program_id = $1 AND pm.elective_group <> 'none'
ORDER BY pm.semester, pm.elective_group, m.name`
	if err := r.db.SelectContext(ctx, &entries, query, programID); err != nil {
		return nil, fmt.Errorf("list electives: %w", err)
	}
	return entries, nil
}
