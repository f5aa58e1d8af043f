package data

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	_ "github.com/lib/pq"

	"github.com/iWorld-y/research_report/app/display/internal/conf"
	"github.com/iWorld-y/research_report/app/research/pkg/storage"
)

type Data struct {
	db    *sql.DB
	store *storage.Storage
}

func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	if c == nil || c.Database == nil {
		return nil, nil, errors.New("data.database is not configured")
	}
	db, err := sql.Open(c.Database.Driver, c.Database.Source)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	// 与研报引擎共用表结构
	store, err := storage.NewWithDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		db.Close()
	}
	return &Data{db: db, store: store}, cleanup, nil
}

// Store 运行记录存储，研报引擎也写入这里
func (d *Data) Store() *storage.Storage {
	return d.store
}
