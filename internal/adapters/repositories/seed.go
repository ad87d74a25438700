package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"route-results-service/internal/domain"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Fixture loaded by SeedFromJSON.
type Seed struct {
	Drivers       []DriverSeed       `json:"drivers"`
	Orders        []OrderSeed        `json:"orders"`
	Optimisations []OptimisationSeed `json:"optimisations"`
}

type DriverSeed struct {
	MemberID  int64  `json:"member_id"`
	FirstName string `json:"first_name"`
}

type OrderSeed struct {
	ID         int64  `json:"id"`
	MerchantID int64  `json:"merchant_id"`
	DriverID   int64  `json:"driver_id"`
	Status     string `json:"status"`
}

type OptimisationSeed struct {
	ID                int64  `json:"id"`
	Day               string `json:"day"`
	MerchantID        int64  `json:"merchant_id"`
	Type              string `json:"type"`
	CreatedBy         int64  `json:"created_by"`
	CreatedByDriver   bool   `json:"created_by_driver"`
	SourceID          int64  `json:"source_id"`
	CustomersNotified bool   `json:"customers_notified"`
}

// SeedFromJSON loads drivers, orders and optimisations from a JSON file.
// Rows with existing keys are replaced.
func SeedFromJSON(db *sql.DB, d Dialect, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}
	if err := data.validate(); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback()
	repo := &sqlRepo{q: tx, d: d}

	for _, dr := range data.Drivers {
		if _, err := repo.exec(ctx, `DELETE FROM drivers WHERE member_id = ?;`, dr.MemberID); err != nil {
			return fmt.Errorf("seed: replace driver %d: %w", dr.MemberID, err)
		}
		if _, err := repo.exec(ctx, `INSERT INTO drivers (member_id, first_name) VALUES (?, ?);`,
			dr.MemberID, dr.FirstName); err != nil {
			return fmt.Errorf("seed: insert driver %d: %w", dr.MemberID, err)
		}
	}

	for _, o := range data.Orders {
		if _, err := repo.exec(ctx, `DELETE FROM orders WHERE id = ?;`, o.ID); err != nil {
			return fmt.Errorf("seed: replace order %d: %w", o.ID, err)
		}
		if _, err := repo.exec(ctx, `INSERT INTO orders (id, merchant_id, driver_id, status) VALUES (?, ?, ?, ?);`,
			o.ID, o.MerchantID, nullInt(o.DriverID), o.Status); err != nil {
			return fmt.Errorf("seed: insert order %d: %w", o.ID, err)
		}
	}

	for _, o := range data.Optimisations {
		if _, err := repo.exec(ctx, `DELETE FROM optimisations WHERE id = ?;`, o.ID); err != nil {
			return fmt.Errorf("seed: replace optimisation %d: %w", o.ID, err)
		}
		q := `
		INSERT INTO optimisations (
			id, day, merchant_id, type, created_by_member, created_by_driver, source_id, customers_notified
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
		`
		if _, err := repo.exec(ctx, q, o.ID, o.Day, o.MerchantID, o.Type,
			nullInt(o.CreatedBy), o.CreatedByDriver, nullInt(o.SourceID), o.CustomersNotified); err != nil {
			return fmt.Errorf("seed: insert optimisation %d: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}
	return nil
}

func (s *Seed) validate() error {
	for i, dr := range s.Drivers {
		if dr.MemberID <= 0 {
			return fmt.Errorf("driver at index %d: invalid member_id %d", i+1, dr.MemberID)
		}
	}
	for i, o := range s.Orders {
		if o.ID <= 0 {
			return fmt.Errorf("order at index %d: invalid id %d", i+1, o.ID)
		}
		if strings.TrimSpace(o.Status) == "" {
			s.Orders[i].Status = string(domain.StatusNotAssigned)
		}
	}
	for i, o := range s.Optimisations {
		if o.ID <= 0 {
			return fmt.Errorf("optimisation at index %d: invalid id %d", i+1, o.ID)
		}
		if _, err := time.Parse(dayLayout, o.Day); err != nil {
			return fmt.Errorf("optimisation at index %d: day: %w", i+1, err)
		}
		switch domain.OptimisationType(o.Type) {
		case domain.OptimisationSolo, domain.OptimisationAdvanced:
		default:
			return fmt.Errorf("optimisation at index %d: unknown type %q", i+1, o.Type)
		}
	}
	return nil
}
