package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if db.Dialect().Name().String() != "pg" {
			fmt.Printf("\033[1;31m%s\033[0m", "You are not using PostgreSQL. DB level checks can not be enabled!\n")
			return nil
		}
		sql := `
			-- state codes: empty, incomplete, complete, rejected, sent
				alter table invoices
				ADD CONSTRAINT check_invoice_state
				CHECK (state BETWEEN 0 AND 4);

			-- complete action codes: send to receiver, nothing
				alter table invoices
				ADD CONSTRAINT check_invoice_complete_action
				CHECK (complete_action BETWEEN 0 AND 1);

				alter table invoices
				ADD CONSTRAINT check_invoice_value
				CHECK (value > 0);
		`
		if _, err := db.Exec(sql); err != nil {
			return err
		}
		return nil
	}, nil)
}
