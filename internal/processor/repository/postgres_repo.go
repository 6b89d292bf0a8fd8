package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/live-raffle-monitor/pkg/contracts/events"
)

// PostgresRepo implementa a persistência histórica de guards e sorteios
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// UpsertGuard insere ou atualiza um registro de guard pela chave raffle_id
// Utiliza ON CONFLICT para manter a operação idempotente
func (r *PostgresRepo) UpsertGuard(ctx context.Context, g events.GuardRecord) error {
	const q = `
		INSERT INTO guards
		  (raffle_id, room_id, gift_name, sender_uid, sender_name, created_time, expire_time)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (raffle_id) DO UPDATE SET
		  room_id      = EXCLUDED.room_id,
		  gift_name    = EXCLUDED.gift_name,
		  sender_uid   = EXCLUDED.sender_uid,
		  sender_name  = EXCLUDED.sender_name,
		  created_time = EXCLUDED.created_time,
		  expire_time  = EXCLUDED.expire_time
	`
	_, err := r.DB.ExecContext(ctx, q,
		g.RaffleID, g.RoomID, g.GiftName,
		g.Sender.UID, g.Sender.Name,
		g.CreatedTime, g.ExpireTime,
	)
	return err
}

// InsertAnnounced grava a fase de anúncio de um sorteio. Em duplicata,
// atualiza só os campos de anúncio — os de resultado ficam intactos.
func (r *PostgresRepo) InsertAnnounced(ctx context.Context, rec events.RaffleRecord) error {
	const q = `
		INSERT INTO raffles
		  (raffle_id, room_id, gift_name, gift_type, sender_uid, sender_name, created_time, expire_time)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (raffle_id) DO UPDATE SET
		  room_id      = EXCLUDED.room_id,
		  gift_name    = EXCLUDED.gift_name,
		  gift_type    = EXCLUDED.gift_type,
		  sender_uid   = EXCLUDED.sender_uid,
		  sender_name  = EXCLUDED.sender_name,
		  created_time = EXCLUDED.created_time,
		  expire_time  = EXCLUDED.expire_time
	`
	_, err := r.DB.ExecContext(ctx, q,
		rec.RaffleID, rec.RoomID, rec.GiftName, rec.GiftType,
		rec.Sender.UID, rec.Sender.Name,
		rec.CreatedTime, rec.ExpireTime,
	)
	return err
}

// FinalizeRaffle grava a fase de resultado. Se o anúncio nunca chegou, a
// linha inteira (com os campos sintetizados pelo handler) é inserida; se já
// existe, só os campos de resultado são sobrescritos.
func (r *PostgresRepo) FinalizeRaffle(ctx context.Context, rec events.RaffleRecord) error {
	var winnerUID *int64
	var winnerName string
	if rec.Winner != nil {
		winnerUID = rec.Winner.UID
		winnerName = rec.Winner.Name
	}

	const q = `
		INSERT INTO raffles
		  (raffle_id, room_id, gift_name, gift_type, sender_uid, sender_name,
		   created_time, expire_time, prize_gift_name, prize_count,
		   winner_uid, winner_name, result_raw)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (raffle_id) DO UPDATE SET
		  prize_gift_name = EXCLUDED.prize_gift_name,
		  prize_count     = EXCLUDED.prize_count,
		  winner_uid      = EXCLUDED.winner_uid,
		  winner_name     = EXCLUDED.winner_name,
		  result_raw      = EXCLUDED.result_raw
	`
	_, err := r.DB.ExecContext(ctx, q,
		rec.RaffleID, rec.RoomID, rec.GiftName, rec.GiftType,
		rec.Sender.UID, rec.Sender.Name,
		rec.CreatedTime, rec.ExpireTime,
		rec.PrizeGiftName, rec.PrizeCount,
		winnerUID, winnerName, rec.ResultRaw,
	)
	return err
}
