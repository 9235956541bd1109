package services

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const orderNumberRandomLen = 4

var base36Max = big.NewInt(36 * 36 * 36 * 36)

// OrderNumberGenerator выдаёт номера вида PREFIX-<время base36>-<4 случайных символа>.
type OrderNumberGenerator struct {
	prefix string
	now    func() time.Time
}

// NewOrderNumberGenerator создаёт генератор номеров заказов
func NewOrderNumberGenerator(prefix string) *OrderNumberGenerator {
	if prefix == "" {
		prefix = "SA"
	}
	return &OrderNumberGenerator{prefix: prefix, now: time.Now}
}

// Next возвращает новый номер заказа
func (g *OrderNumberGenerator) Next() string {
	ts := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	return g.prefix + "-" + ts + "-" + randomBase36(orderNumberRandomLen)
}

func randomBase36(n int) string {
	v, err := rand.Int(rand.Reader, base36Max)
	if err != nil {
		v = big.NewInt(time.Now().UnixNano() % base36Max.Int64())
	}
	s := strings.ToUpper(v.Text(36))
	if len(s) < n {
		s = strings.Repeat("0", n-len(s)) + s
	}
	return s[len(s)-n:]
}
