// Package producer generates events and submits them to the bridge.
package producer

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/telhawk-systems/relay-stack/common/models"
)

// eventNames are the business events the simulator emits.
var eventNames = []string{
	"UserRegistered",
	"UserLoggedIn",
	"OrderPlaced",
	"OrderShipped",
	"PaymentCaptured",
	"PaymentRefunded",
	"CartAbandoned",
	"SubscriptionRenewed",
}

// Generator builds random but well-formed events. It is not safe for
// concurrent use.
type Generator struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewGenerator returns a generator; seed 0 picks a random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed), now: time.Now}
}

func (g *Generator) Next() models.Event {
	name := g.faker.RandomString(eventNames)
	return models.Event{
		ID:        uuid.New().String(),
		Name:      name,
		Body:      g.body(name),
		Timestamp: g.now().UTC().Format(time.RFC3339),
	}
}

func (g *Generator) body(name string) string {
	switch name {
	case "UserRegistered", "UserLoggedIn":
		return fmt.Sprintf("%s <%s> from %s", g.faker.Name(), g.faker.Email(), g.faker.IPv4Address())
	case "OrderPlaced", "OrderShipped", "CartAbandoned":
		return fmt.Sprintf("%d x %s for %s", g.faker.Number(1, 5), g.faker.ProductName(), g.faker.Name())
	case "PaymentCaptured", "PaymentRefunded":
		return fmt.Sprintf("%.2f %s via %s", g.faker.Price(5, 500), g.faker.CurrencyShort(), g.faker.CreditCardType())
	default:
		return g.faker.Sentence(8)
	}
}
