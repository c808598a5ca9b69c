package limitxredis

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/gatekit/pkg/errx"
	"github.com/redis/go-redis/v9"
)

// keyGrace extiende el TTL de la clave más allá del fin de la ventana para
// que un reloj levemente desfasado no borre un contador todavía en uso.
const keyGrace = 5 * time.Second

// RedisCounter es la implementación en Redis de limitx.Counter. La
// alineación de ventana viaja en la clave misma: cada ventana usa una clave
// distinta, así el rollover descarta el contador viejo por construcción y
// el INCR nativo de Redis da la atomicidad por clave.
type RedisCounter struct {
	client *redis.Client
	window time.Duration
}

// NewRedisCounter crea un counter para ventanas de la duración dada. La
// duración se necesita para expirar las claves; debe coincidir con la
// ventana que el Limiter usa en Check.
func NewRedisCounter(client *redis.Client, window time.Duration) *RedisCounter {
	return &RedisCounter{client: client, window: window}
}

// Increment incrementa el contador de la ventana y devuelve el count
// resultante. INCR y PEXPIRE van en un pipeline: un solo round trip.
func (c *RedisCounter) Increment(ctx context.Context, key string, windowStart int64) (int64, error) {
	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, windowStart)

	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.PExpire(ctx, windowKey, c.window+keyGrace)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errx.Wrap(err, "failed to increment rate counter in redis", errx.TypeInternal).
			WithDetail("key", key)
	}
	return incr.Val(), nil
}
