package state

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// redisState shares a table between collectors. Every change is published
// on a channel named after the key so the other instances update their
// memory copy.
type redisState[K comparable, V any] struct {
	memory    memoryState[K, V]
	urlParsed *url.URL
	rPrefix   string
	db        *redis.Client
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
}

const (
	redisOpAdd = 1
	redisOpDel = 2
)

func (r *redisState[K, V]) init() error {
	r.rPrefix = r.urlParsed.Query().Get("prefix")
	if r.rPrefix == "" {
		return fmt.Errorf("'prefix' name is required on redis state engine, place it on your URL query string")
	}
	// go-redis rejects unknown query parameters
	u := *r.urlParsed
	q := u.Query()
	q.Del("prefix")
	u.RawQuery = q.Encode()
	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return err
	}
	r.db = redis.NewClient(opts)

	// pre-populate local memory copy from existing redis data
	iter := r.db.Scan(r.ctx, 0, r.rPrefix+"*", 0).Iterator()
	for iter.Next(r.ctx) {
		kRaw := iter.Val()
		vRaw, err := r.db.Get(r.ctx, kRaw).Bytes()
		if err == redis.Nil {
			continue
		} else if err != nil {
			r.db.Close()
			return err
		}
		if err := r.load(kRaw, vRaw); err != nil {
			r.db.Close()
			return err
		}
	}
	if err = iter.Err(); err != nil {
		r.db.Close()
		return err
	}

	ps := r.db.PSubscribe(r.ctx, r.rPrefix+"*")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ps.Close()
		r.follow(ps.Channel())
	}()
	return nil
}

func (r *redisState[K, V]) decodeKey(kRaw string) (K, error) {
	var k K
	kRaw, _ = strings.CutPrefix(kRaw, r.rPrefix)
	err := json.Unmarshal([]byte(kRaw), &k)
	return k, err
}

func (r *redisState[K, V]) load(kRaw string, vRaw []byte) error {
	k, err := r.decodeKey(kRaw)
	if err != nil {
		return err
	}
	var v V
	if err := json.Unmarshal(vRaw, &v); err != nil {
		return err
	}
	return r.memory.Add(k, v)
}

// follow applies changes published by any instance, including this one.
func (r *redisState[K, V]) follow(ch <-chan *redis.Message) {
	for {
		select {
		case msgRaw, ok := <-ch:
			if !ok {
				return
			}
			op, err := strconv.Atoi(msgRaw.Payload)
			if err != nil {
				continue
			}
			switch op {
			case redisOpAdd:
				vBytes, err := r.db.Get(r.ctx, msgRaw.Channel).Bytes()
				if err != nil {
					continue
				}
				_ = r.load(msgRaw.Channel, vBytes)
			case redisOpDel:
				if k, err := r.decodeKey(msgRaw.Channel); err == nil {
					_ = r.memory.Delete(k)
				}
			}
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *redisState[K, V]) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.db.Close()
}

func (r *redisState[K, V]) Get(key K) (V, error) {
	return r.memory.Get(key)
}

func (r *redisState[K, V]) All() map[K]V {
	return r.memory.All()
}

func (r *redisState[K, V]) redisKey(key K) (string, error) {
	k, err := json.Marshal(key)
	if err != nil {
		return "", err
	}
	return r.rPrefix + string(k), nil
}

func (r *redisState[K, V]) Add(key K, value V) error {
	kStr, err := r.redisKey(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err = r.db.Set(r.ctx, kStr, v, 0).Err(); err != nil {
		return err
	}
	// the subscription would catch up, but reads must see the value now
	if err = r.memory.Add(key, value); err != nil {
		return err
	}
	return r.db.Publish(r.ctx, kStr, redisOpAdd).Err()
}

func (r *redisState[K, V]) Delete(key K) error {
	kStr, err := r.redisKey(key)
	if err != nil {
		return err
	}
	if err = r.db.Del(r.ctx, kStr).Err(); err != nil {
		return err
	}
	if err = r.memory.Delete(key); err != nil {
		return err
	}
	return r.db.Publish(r.ctx, kStr, redisOpDel).Err()
}

func (r *redisState[K, V]) Pop(key K) (V, error) {
	v, err := r.Get(key)
	if err != nil {
		return v, err
	}
	return v, r.Delete(key)
}
