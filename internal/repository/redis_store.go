package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go-inventory-hold/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisPrefix = "inv:"

// redisStore keeps SKUs and holds in hashes:
//
//	{prefix}sku:{id}        hash  name stock reserved active created updated
//	{prefix}skus            set   every sku id
//	{prefix}hold:{id}       hash  sku qty holder session status expires created updated
//	{prefix}sku_holds:{id}  set   hold ids per sku
//	{prefix}holder:{id}     set   hold ids per holder
//	{prefix}expiry          zset  hold id scored by expiry in unix millis
type redisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string) Store {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &redisStore{client: client, prefix: prefix, now: time.Now}
}

func (r *redisStore) skuKey(id string) string      { return r.prefix + "sku:" + id }
func (r *redisStore) skusKey() string              { return r.prefix + "skus" }
func (r *redisStore) holdKey(id string) string     { return r.prefix + "hold:" + id }
func (r *redisStore) skuHoldsKey(id string) string { return r.prefix + "sku_holds:" + id }
func (r *redisStore) holderKey(id string) string   { return r.prefix + "holder:" + id }
func (r *redisStore) expiryKey() string            { return r.prefix + "expiry" }

func (r *redisStore) CreateSKU(ctx context.Context, sku *model.SKU) error {
	now := r.now()
	active := "0"
	if sku.IsActive {
		active = "1"
	}
	created, err := createSKUScript.Run(ctx, r.client,
		[]string{r.skuKey(sku.ID), r.skusKey()},
		sku.ID, sku.Name, sku.Stock, active, now.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("create sku %s: %w", sku.ID, err)
	}
	if created == 0 {
		return ErrSkuExists
	}
	sku.ReservedStock = 0
	sku.CreatedAt = time.UnixMilli(now.UnixMilli())
	sku.UpdatedAt = sku.CreatedAt
	return nil
}

func (r *redisStore) FindSKU(ctx context.Context, id string) (*model.SKU, error) {
	fields, err := r.client.HGetAll(ctx, r.skuKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrSkuNotFound
	}
	return parseSKU(id, fields)
}

func (r *redisStore) ListSKUs(ctx context.Context) ([]model.SKU, error) {
	ids, err := r.client.SMembers(ctx, r.skusKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.skuKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	skus := make([]model.SKU, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		sku, err := parseSKU(ids[i], fields)
		if err != nil {
			return nil, err
		}
		skus = append(skus, *sku)
	}
	return skus, nil
}

func (r *redisStore) SetActive(ctx context.Context, id string, active bool) error {
	flag := "0"
	if active {
		flag = "1"
	}
	ok, err := setActiveScript.Run(ctx, r.client, []string{r.skuKey(id)}, flag, r.now().UnixMilli()).Int()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrSkuNotFound
	}
	return nil
}

func (r *redisStore) Restock(ctx context.Context, id string, delta int) (*model.SKU, error) {
	if delta <= 0 {
		return nil, ErrInvalidQuantity
	}
	stock, err := restockScript.Run(ctx, r.client, []string{r.skuKey(id)}, delta, r.now().UnixMilli()).Int()
	if err != nil {
		return nil, err
	}
	if stock < 0 {
		return nil, ErrSkuNotFound
	}
	return r.FindSKU(ctx, id)
}

func (r *redisStore) IncrementReserved(ctx context.Context, id string, delta int) error {
	return r.adjust(ctx, "incr_reserved", id, delta)
}

func (r *redisStore) DecrementReserved(ctx context.Context, id string, delta int) error {
	return r.adjust(ctx, "decr_reserved", id, delta)
}

func (r *redisStore) DecrementStock(ctx context.Context, id string, delta int) error {
	return r.adjust(ctx, "decr_stock", id, delta)
}

func (r *redisStore) adjust(ctx context.Context, mode, id string, delta int) error {
	if delta <= 0 {
		return ErrInvalidQuantity
	}
	res, err := adjustScript.Run(ctx, r.client, []string{r.skuKey(id)}, mode, delta).Int64Slice()
	if err != nil {
		return err
	}
	switch res[0] {
	case -1:
		return ErrSkuNotFound
	case -3:
		return &InsufficientStockError{SkuID: id, Requested: delta, Available: int(res[1])}
	}
	return nil
}

func (r *redisStore) GetAvailable(ctx context.Context, id string) (int, error) {
	vals, err := r.client.HMGet(ctx, r.skuKey(id), "stock", "reserved").Result()
	if err != nil {
		return 0, err
	}
	if vals[0] == nil {
		return 0, ErrSkuNotFound
	}
	stock, err := strconv.Atoi(vals[0].(string))
	if err != nil {
		return 0, err
	}
	reserved, err := strconv.Atoi(vals[1].(string))
	if err != nil {
		return 0, err
	}
	return stock - reserved, nil
}

func (r *redisStore) FindReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	fields, err := r.client.HGetAll(ctx, r.holdKey(id.String())).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrReservationNotFound
	}
	return parseHold(id.String(), fields)
}

func (r *redisStore) FindByHolder(ctx context.Context, holderID string) ([]model.Reservation, error) {
	ids, err := r.client.SMembers(ctx, r.holderKey(holderID)).Result()
	if err != nil {
		return nil, err
	}
	holds, err := r.loadHolds(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(holds)
	return holds, nil
}

func (r *redisStore) FindExpired(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: "(" + strconv.FormatInt(now.UnixMilli(), 10)}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := r.client.ZRangeByScore(ctx, r.expiryKey(), by).Result()
	if err != nil {
		return nil, err
	}
	return r.loadHolds(ctx, ids)
}

func (r *redisStore) CountLive(ctx context.Context, now time.Time) (int64, error) {
	return r.client.ZCount(ctx, r.expiryKey(), strconv.FormatInt(now.UnixMilli(), 10), "+inf").Result()
}

func (r *redisStore) loadHolds(ctx context.Context, ids []string) ([]model.Reservation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.holdKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	holds := make([]model.Reservation, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		hold, err := parseHold(ids[i], fields)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *hold)
	}
	return holds, nil
}

func (r *redisStore) Reserve(ctx context.Context, hold *model.Reservation) (int, error) {
	if hold.Quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if hold.ID == uuid.Nil {
		hold.ID = uuid.New()
	}
	if hold.CreatedAt.IsZero() {
		hold.CreatedAt = r.now()
	}
	hold.Status = model.ReservationActive
	hold.ExpiresAt = time.UnixMilli(hold.ExpiresAt.UnixMilli())
	hold.CreatedAt = time.UnixMilli(hold.CreatedAt.UnixMilli())
	hold.UpdatedAt = hold.CreatedAt

	id := hold.ID.String()
	res, err := reserveScript.Run(ctx, r.client,
		[]string{r.skuKey(hold.SkuID), r.holdKey(id), r.skuHoldsKey(hold.SkuID), r.holderKey(hold.HolderID), r.expiryKey()},
		id, hold.SkuID, hold.Quantity, hold.HolderID, hold.SessionID, hold.ExpiresAt.UnixMilli(), hold.CreatedAt.UnixMilli(),
	).Int64Slice()
	if err != nil {
		return 0, err
	}
	available := int(res[1])
	switch res[0] {
	case -1:
		return 0, ErrSkuNotFound
	case -2:
		return 0, ErrSkuInactive
	case -3:
		return available, &InsufficientStockError{SkuID: hold.SkuID, Requested: hold.Quantity, Available: available}
	}
	return available, nil
}

func (r *redisStore) Release(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return r.remove(ctx, id, false)
}

func (r *redisStore) Convert(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	return r.remove(ctx, id, true)
}

func (r *redisStore) remove(ctx context.Context, id uuid.UUID, sold bool) (*model.Reservation, error) {
	flag := "0"
	if sold {
		flag = "1"
	}
	raw, err := removeScript.Run(ctx, r.client,
		[]string{r.holdKey(id.String()), r.expiryKey()},
		r.prefix, id.String(), flag, r.now().UnixMilli(),
	).StringSlice()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrReservationNotFound
	}
	fields := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		fields[raw[i]] = raw[i+1]
	}
	return parseHold(id.String(), fields)
}

func (r *redisStore) TransferHolds(ctx context.Context, req HoldTransfer) ([]model.Reservation, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	res, err := transferScript.Run(ctx, r.client,
		[]string{r.skuKey(req.SkuID), r.skuHoldsKey(req.SkuID), r.expiryKey()},
		r.prefix, req.SkuID, req.FromHolderID, req.ToHolderID, req.SessionID, req.Quantity,
		req.Now.UnixMilli(), uuid.NewString(), uuid.NewString(),
	).Slice()
	if err != nil {
		return nil, err
	}
	code, _ := res[0].(int64)
	switch code {
	case -1:
		return nil, ErrSkuNotFound
	case 0:
		covered := int64(0)
		if len(res) > 1 {
			covered, _ = res[1].(int64)
		}
		return nil, &HoldsNotCoveredError{SkuID: req.SkuID, Requested: req.Quantity, Covered: int(covered)}
	}

	ids := make([]string, 0, len(res)-1)
	for _, v := range res[1:] {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	holds, err := r.loadHolds(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(holds)
	return holds, nil
}

func (r *redisStore) ReconcileSKU(ctx context.Context, skuID string, now time.Time) (*Reconciliation, error) {
	res, err := reconcileScript.Run(ctx, r.client,
		[]string{r.skuKey(skuID), r.skuHoldsKey(skuID), r.expiryKey()},
		r.prefix, now.UnixMilli(),
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) == 1 {
		return nil, ErrSkuNotFound
	}

	stored, _ := res[0].(int64)
	actual, _ := res[1].(int64)
	rec := &Reconciliation{SkuID: skuID, Stored: int(stored), Actual: int(actual)}
	for i := 2; i+2 < len(res); i += 3 {
		idStr, _ := res[i].(string)
		qtyStr, _ := res[i+1].(string)
		holder, _ := res[i+2].(string)
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		qty, _ := strconv.Atoi(qtyStr)
		rec.Evicted = append(rec.Evicted, model.Reservation{
			ID:       id,
			SkuID:    skuID,
			Quantity: qty,
			HolderID: holder,
			Status:   model.ReservationActive,
		})
	}
	return rec, nil
}

func (r *redisStore) ReconcileCandidates(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.skusKey()).Result()
	if err != nil {
		return nil, err
	}

	pipe := r.client.Pipeline()
	reserved := make([]*redis.StringCmd, len(ids))
	held := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		reserved[i] = pipe.HGet(ctx, r.skuKey(id), "reserved")
		held[i] = pipe.SCard(ctx, r.skuHoldsKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	seen := make(map[string]struct{})
	for i, id := range ids {
		n, _ := reserved[i].Int()
		if n > 0 || held[i].Val() > 0 {
			seen[id] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func parseSKU(id string, fields map[string]string) (*model.SKU, error) {
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("sku %s: bad stock %q: %w", id, fields["stock"], err)
	}
	reserved, err := strconv.Atoi(fields["reserved"])
	if err != nil {
		return nil, fmt.Errorf("sku %s: bad reserved %q: %w", id, fields["reserved"], err)
	}
	sku := &model.SKU{
		ID:            id,
		Name:          fields["name"],
		Stock:         stock,
		ReservedStock: reserved,
		IsActive:      fields["active"] == "1",
	}
	sku.CreatedAt = parseMillis(fields["created"])
	sku.UpdatedAt = parseMillis(fields["updated"])
	return sku, nil
}

func parseHold(id string, fields map[string]string) (*model.Reservation, error) {
	holdID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("hold %s: %w", id, err)
	}
	qty, err := strconv.Atoi(fields["qty"])
	if err != nil {
		return nil, fmt.Errorf("hold %s: bad qty %q: %w", id, fields["qty"], err)
	}
	hold := &model.Reservation{
		ID:        holdID,
		SkuID:     fields["sku"],
		Quantity:  qty,
		HolderID:  fields["holder"],
		SessionID: fields["session"],
		Status:    model.ReservationStatus(fields["status"]),
		ExpiresAt: parseMillis(fields["expires"]),
	}
	if hold.Status == "" {
		hold.Status = model.ReservationActive
	}
	hold.CreatedAt = parseMillis(fields["created"])
	hold.UpdatedAt = parseMillis(fields["updated"])
	return hold, nil
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
