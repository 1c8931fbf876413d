package infra

import (
	"os"
	"path"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pyama86/quera/domain/model"
)

type DataBase struct {
	db *gorm.DB
}

func NewDataBase() (*DataBase, error) {
	dbpath := "./db/quera.db"
	if os.Getenv("DB_PATH") != "" {
		dbpath = os.Getenv("DB_PATH")
	}
	if !path.IsAbs(dbpath) {
		dbpath = path.Join(os.Getenv("PWD"), dbpath)
	}
	db, err := gorm.Open("sqlite3", dbpath)
	if err != nil {
		return nil, err
	}
	db.AutoMigrate(&model.Query{})
	return &DataBase{db: db}, nil
}

func (d *DataBase) SaveQuery(query *model.Query) error {
	// 文字列の主キーはgormのSaveだとINSERTされないので自前で分岐する
	var existing model.Query
	if d.db.Where("id = ?", query.ID).First(&existing).RecordNotFound() {
		return d.db.Create(query).Error
	}
	return d.db.Save(query).Error
}

func (d *DataBase) GetQuery(id string) (*model.Query, error) {
	var query model.Query
	err := d.db.Where("id = ?", id).First(&query).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &query, nil
}

func (d *DataBase) LatestQueries(limit int) ([]model.Query, error) {
	var queries []model.Query
	err := d.db.Order("created_at desc").Limit(limit).Find(&queries).Error
	return queries, err
}

func (d *DataBase) ActiveQueries(limit int) ([]model.Query, error) {
	var queries []model.Query
	err := d.db.Where("status <> ?", model.StatusClosed).
		Order("priority desc").Limit(limit).Find(&queries).Error
	return queries, err
}

func (d *DataBase) AssignedQueries(actorID string, limit int) ([]model.Query, error) {
	var queries []model.Query
	err := d.db.Where("assigned_to = ? AND status IN (?)", actorID,
		[]string{model.StatusAssigned, model.StatusInProgress}).
		Order("priority desc").Limit(limit).Find(&queries).Error
	return queries, err
}

func (d *DataBase) SolvedQueries(actorID string, limit int) ([]model.Query, error) {
	var queries []model.Query
	err := d.db.Where("assigned_to = ? AND status IN (?)", actorID,
		[]string{model.StatusResolved, model.StatusClosed}).
		Order("updated_at desc").Limit(limit).Find(&queries).Error
	return queries, err
}

func (d *DataBase) AllQueries() ([]model.Query, error) {
	var queries []model.Query
	err := d.db.Find(&queries).Error
	return queries, err
}
