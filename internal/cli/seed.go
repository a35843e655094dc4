package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/shrimpsizemoose/trekker/logger"
	"gopkg.in/yaml.v3"

	"cie-scoring-service/internal/domain"
	"cie-scoring-service/internal/infra/memory"
)

// rosterFile is the on-disk shape of seed.path.
type rosterFile struct {
	Subjects []struct {
		ID             string `yaml:"id"`
		Name           string `yaml:"name"`
		Code           string `yaml:"code"`
		ClassID        string `yaml:"class_id"`
		AcademicYearID string `yaml:"academic_year_id"`
	} `yaml:"subjects"`
	Students []struct {
		ID             string `yaml:"id"`
		RollNo         string `yaml:"roll_no"`
		Name           string `yaml:"name"`
		ClassID        string `yaml:"class_id"`
		AcademicYearID string `yaml:"academic_year_id"`
	} `yaml:"students"`
}

// rosterWriter is satisfied by the Postgres store and memoryRoster.
type rosterWriter interface {
	AddSubject(ctx context.Context, subject domain.Subject) error
	AddStudent(ctx context.Context, student domain.Student) error
}

type memoryRoster struct {
	store *memory.Store
}

func (m memoryRoster) AddSubject(_ context.Context, subject domain.Subject) error {
	m.store.AddSubject(subject)
	return nil
}

func (m memoryRoster) AddStudent(_ context.Context, student domain.Student) error {
	m.store.AddStudent(student)
	return nil
}

// seedRoster upserts every subject and student listed in path.
func seedRoster(ctx context.Context, path string, w rosterWriter) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read roster: %w", err)
	}
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse roster %s: %w", path, err)
	}

	for _, s := range f.Subjects {
		if s.ID == "" {
			return fmt.Errorf("roster %s: subject without id", path)
		}
		err := w.AddSubject(ctx, domain.Subject{
			ID:             s.ID,
			Name:           s.Name,
			Code:           s.Code,
			ClassID:        s.ClassID,
			AcademicYearID: s.AcademicYearID,
		})
		if err != nil {
			return err
		}
	}
	for _, s := range f.Students {
		if s.ID == "" {
			return fmt.Errorf("roster %s: student without id", path)
		}
		err := w.AddStudent(ctx, domain.Student{
			ID:             s.ID,
			RollNo:         s.RollNo,
			Name:           s.Name,
			ClassID:        s.ClassID,
			AcademicYearID: s.AcademicYearID,
		})
		if err != nil {
			return err
		}
	}
	logger.Info.Printf("roster seeded from %s: %d subjects, %d students", path, len(f.Subjects), len(f.Students))
	return nil
}
