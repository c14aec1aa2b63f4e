package utils

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

// OfferGenerator produces synthetic trade offer events for local runs
// without Steam credentials.
type OfferGenerator struct {
	nextID uint64
	rng    *rand.Rand
}

// NewOfferGenerator creates a new offer generator
func NewOfferGenerator() *OfferGenerator {
	return &OfferGenerator{
		nextID: 9_000_000_000,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var sampleItems = []struct {
	name     string
	hashName string
	itemType string
}{
	{"AK-47 | Редлайн (После полевых испытаний)", "AK-47 | Redline (Field-Tested)", "Винтовка, Запрещённое"},
	{"AWP | Азимов (Немного поношенное)", "AWP | Asiimov (Minimal Wear)", "Снайперская винтовка, Засекреченное"},
	{"★ Керамбит | Градиент (Прямо с завода)", "★ Karambit | Fade (Factory New)", "Нож, Тайное"},
	{"Glock-18 | Выцветший (Прямо с завода)", "Glock-18 | Fade (Factory New)", "Пистолет, Запрещённое"},
	{"P90 | Азимов (Закалённое в боях)", "P90 | Asiimov (Battle-Scarred)", "Пистолет-пулемёт, Засекреченное"},
}

// GenerateIncomingOffer creates a random incoming offer event with the
// given number of offered items and nothing requested in return.
func (g *OfferGenerator) GenerateIncomingOffer(itemCount int) model.OfferReceivedEvent {
	g.nextID++
	items := make([]model.Asset, 0, itemCount)
	for i := 0; i < itemCount; i++ {
		sample := sampleItems[g.rng.Intn(len(sampleItems))]
		items = append(items, model.Asset{
			AssetID:        uuid.New().String(),
			Name:           sample.name,
			Type:           sample.itemType,
			MarketName:     sample.hashName,
			MarketHashName: sample.hashName,
			Marketable:     true,
		})
	}
	return model.OfferReceivedEvent{
		Offer: model.TradeOffer{
			ID:             g.nextID,
			Direction:      model.DirectionIncoming,
			Partner:        "76561198000000000",
			ItemsToReceive: items,
			State:          model.OfferActive,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		},
	}
}

// GenerateOfferChange moves a previously generated offer to a random
// non-active remote state.
func (g *OfferGenerator) GenerateOfferChange(offerID uint64) model.OfferChangedEvent {
	states := []model.RemoteOfferState{
		model.RemoteAccepted,
		model.RemoteDeclined,
		model.RemoteCanceled,
		model.RemoteExpired,
	}
	return model.OfferChangedEvent{
		OfferID:  offerID,
		OldState: model.RemoteActive,
		NewState: states[g.rng.Intn(len(states))],
	}
}
