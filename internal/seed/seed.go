package seed

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	appModels "github.com/batchswap/batchswap/internal/app/models"
	appRepos "github.com/batchswap/batchswap/internal/app/repositories"
	"github.com/batchswap/batchswap/internal/pkg/apperrors"
	"github.com/batchswap/batchswap/internal/pkg/auth"
)

// CreateDefaultData creates a handful of demo students across the three
// batches so a fresh install has swap partners to work with. Existing
// accounts are left untouched.
func CreateDefaultData(ctx context.Context, dbPool *pgxpool.Pool, lgr zerolog.Logger) error {
	studentRepo := appRepos.NewStudentRepository(dbPool)

	lgr.Info().Msg("Checking/Creating default data (demo students)...")

	demoStudents := []struct {
		email     string
		firstName string
		lastName  string
		cgpa      float64
		batch     appModels.Batch
	}{
		{"aisha.khan@school.edu", "Aisha", "Khan", 8.24, appModels.BatchForenoon},
		{"rahul.nair@school.edu", "Rahul", "Nair", 8.20, appModels.BatchEvening1},
		{"meera.iyer@school.edu", "Meera", "Iyer", 8.27, appModels.BatchEvening2},
		{"vikram.rao@school.edu", "Vikram", "Rao", 7.10, appModels.BatchForenoon},
		{"sana.sheikh@school.edu", "Sana", "Sheikh", 7.08, appModels.BatchEvening1},
		{"arjun.menon@school.edu", "Arjun", "Menon", 9.45, appModels.BatchEvening2},
	}

	var finalErr error
	for _, demo := range demoStudents {
		hashedPassword, err := auth.HashPassword("ChangeMe123!")
		if err != nil {
			lgr.Error().Err(err).Msg("Error hashing demo student password")
			finalErr = errors.Join(finalErr, err)
			continue
		}

		student := &appModels.Student{
			Email:         demo.email,
			Password:      hashedPassword,
			FirstName:     demo.firstName,
			LastName:      demo.lastName,
			CGPA:          demo.cgpa,
			CurrentBatch:  demo.batch,
			OriginalBatch: demo.batch,
			IsActive:      true,
		}

		id, err := studentRepo.Create(ctx, student)
		if err != nil {
			if errors.Is(err, apperrors.ErrEmailAlreadyExists) {
				continue
			}
			lgr.Error().Err(err).Str("email", demo.email).Msg("Error creating demo student")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		lgr.Info().
			Int64("studentID", id).
			Str("email", demo.email).
			Str("batch", string(demo.batch)).
			Msg("Demo student created")
	}

	lgr.Info().Msg("Default data check/creation finished.")
	return finalErr
}
