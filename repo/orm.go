// Package repo ignore_security_alert_file SQL_INJECTION
package repo

import (
	"context"
	"errors"
	"fmt"
	"phishsim/config"
	"phishsim/pkg/goutil"
	"reflect"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedDriver = errors.New("unsupported db driver")

type txKey struct{}

type TxService interface {
	RunTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type BaseRepo interface {
	TxService

	Create(ctx context.Context, model interface{}) error
	CreateMany(ctx context.Context, model interface{}, data interface{}) error
	// CreateIgnoreConflict inserts model unless its key exists and returns the number of rows inserted.
	CreateIgnoreConflict(ctx context.Context, model interface{}) (int64, error)
	Get(ctx context.Context, model interface{}, f *Filter) error
	GetMany(ctx context.Context, model interface{}, f *Filter) ([]interface{}, *Pagination, error)
	Count(ctx context.Context, model interface{}, f *Filter) (uint64, error)
	Delete(ctx context.Context, model interface{}, f *Filter) error
	Update(ctx context.Context, model interface{}) error
	// UpdateWhere applies values to the rows matching f and returns the number of rows affected.
	UpdateWhere(ctx context.Context, model interface{}, f *Filter, values map[string]interface{}) (int64, error)
	Save(ctx context.Context, model interface{}) error
	AutoMigrate(ctx context.Context, models ...interface{}) error
	Close(ctx context.Context) error
}

type baseRepo struct {
	db *gorm.DB
}

func NewBaseRepo(ctx context.Context, dbCfg config.Database) (BaseRepo, error) {
	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case config.DriverMySQL, "":
		dialector = mysql.Open(dbCfg.ToDSN())
	case config.DriverPostgres:
		dialector = postgres.Open(dbCfg.ToDSN())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, dbCfg.Driver)
	}
	return NewBaseRepoWithDialector(ctx, dialector)
}

func NewBaseRepoWithDialector(_ context.Context, dialector gorm.Dialector) (BaseRepo, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &baseRepo{
		db: db,
	}, nil
}

func (r *baseRepo) Create(ctx context.Context, data interface{}) error {
	return r.getDb(ctx).Create(data).Error
}

func (r *baseRepo) CreateMany(ctx context.Context, model interface{}, data interface{}) error {
	if rv := reflect.ValueOf(data); rv.Kind() == reflect.Slice && rv.Len() == 0 {
		return nil
	}
	return r.getDb(ctx).Model(model).Create(data).Error
}

func (r *baseRepo) CreateIgnoreConflict(ctx context.Context, model interface{}) (int64, error) {
	res := r.getDb(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(model)
	return res.RowsAffected, res.Error
}

func (r *baseRepo) Count(ctx context.Context, model interface{}, f *Filter) (uint64, error) {
	var count int64
	if err := applyFilter(r.getDb(ctx).Model(model), f).Count(&count).Error; err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (r *baseRepo) Delete(ctx context.Context, model interface{}, f *Filter) error {
	if f == nil || len(f.Conditions) == 0 {
		return errors.New("refuse to delete without conditions")
	}
	return applyFilter(r.getDb(ctx), f).Delete(model).Error
}

func (r *baseRepo) Get(ctx context.Context, model interface{}, f *Filter) error {
	return applyFilter(r.getDb(ctx).Model(model), f).First(model).Error
}

func (r *baseRepo) GetMany(ctx context.Context, model interface{}, f *Filter) ([]interface{}, *Pagination, error) {
	query := applyFilter(r.getDb(ctx).Model(model), f)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, nil, err
	}

	var pagination *Pagination
	if f != nil {
		pagination = f.Pagination
	}
	if pagination == nil {
		pagination = new(Pagination)
	}

	var (
		limit = pagination.GetLimit()
		page  = pagination.GetPage()
	)
	if page == 0 {
		page = 1
	}

	query = query.Offset(int((page - 1) * limit)).Order(f.GetOrder())
	if limit > 0 {
		query = query.Limit(int(limit + 1))
	}

	var (
		modelElem = reflect.TypeOf(model).Elem()
		queryRes  = reflect.New(reflect.SliceOf(modelElem)).Interface()
	)
	if err := query.Find(queryRes).Error; err != nil {
		return nil, nil, err
	}

	var (
		resElem = reflect.ValueOf(queryRes).Elem()
		res     = make([]interface{}, resElem.Len())
	)
	for i := 0; i < resElem.Len(); i++ {
		res[i] = resElem.Index(i).Addr().Interface() // return addr
	}

	var hasNext bool
	if limit > 0 && len(res) > int(limit) {
		hasNext = true
		res = res[:limit]
	}

	return res, &Pagination{
		Page:    goutil.Uint32(page),
		Limit:   pagination.Limit,
		HasNext: goutil.Bool(hasNext),
		Total:   goutil.Uint32(uint32(count)),
	}, nil
}

func (r *baseRepo) Update(ctx context.Context, model interface{}) error {
	return r.getDb(ctx).Updates(model).Error
}

func (r *baseRepo) UpdateWhere(ctx context.Context, model interface{}, f *Filter, values map[string]interface{}) (int64, error) {
	res := applyFilter(r.getDb(ctx).Model(model), f).Updates(values)
	return res.RowsAffected, res.Error
}

func (r *baseRepo) Save(ctx context.Context, model interface{}) error {
	return r.getDb(ctx).Save(model).Error
}

func (r *baseRepo) AutoMigrate(ctx context.Context, models ...interface{}) error {
	return r.getDb(ctx).AutoMigrate(models...)
}

func (r *baseRepo) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.hasTx(ctx) {
		return fn(ctx)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctxWithTx := context.WithValue(ctx, txKey{}, tx)
		if err := fn(ctxWithTx); err != nil {
			return err
		}
		return nil
	})
}

func (r *baseRepo) Close(_ context.Context) error {
	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			return err
		}

		err = sqlDB.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *baseRepo) getDb(ctx context.Context) *gorm.DB {
	db, ok := ctx.Value(txKey{}).(*gorm.DB)
	if !ok {
		db = r.db
	}
	return db.WithContext(ctx)
}

func (r *baseRepo) hasTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}

func applyFilter(db *gorm.DB, f *Filter) *gorm.DB {
	sqlQuery, args := ToSqlWithArgs(f)
	if sqlQuery == "" {
		return db
	}
	return db.Where(sqlQuery, args...)
}
