package migrations

import (
	"context"

	"github.com/getAlby/evmhub.go/db/models"
	"github.com/uptrace/bun"
)

/*
Since this init will reflect the latest model fields when run on fresh db
make sure that when you add/remove columns in subsequent migrations IfNotExists/IfExists is used
otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewCreateTable().Model((*models.Invoice)(nil)).IfNotExists().Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().Model((*models.Invoice)(nil)).IfExists().Exec(ctx)
		return err
	})
}
