package infra

import (
	"time"

	"github.com/pyama86/quera/domain/model"
)

type Datastore interface {
	// クエリを保存する(upsert、後勝ち)
	SaveQuery(*model.Query) error
	// クエリを1件取得する(存在しなければnil)
	GetQuery(id string) (*model.Query, error)
	// 受信箱: 最新のクエリをlimit件取得する
	LatestQueries(limit int) ([]model.Query, error)
	// 対応中: closed以外を優先度の高い順にlimit件取得する
	ActiveQueries(limit int) ([]model.Query, error)
	// 自分の担当: assigned/in_progressを優先度の高い順にlimit件取得する
	AssignedQueries(actorID string, limit int) ([]model.Query, error)
	// 解決済み: resolved/closedを更新日時の新しい順にlimit件取得する
	SolvedQueries(actorID string, limit int) ([]model.Query, error)
	// 統計用の全件取得
	AllQueries() ([]model.Query, error)
}

func timeNow() time.Time {
	return time.Now().UTC()
}
