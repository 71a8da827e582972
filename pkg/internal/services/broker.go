package services

import (
	"sync"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/rs/zerolog/log"
)

// Username-keyed pub/sub registry. Channel name -> client ID -> client.
var (
	brokerClients  = make(map[string]*BrokerClient)
	brokerChannels = make(map[string]map[string]*BrokerClient)
	brokerLock     sync.Mutex
)

type BrokerClient struct {
	ID     string
	Events chan models.ChannelEvent
}

func RegisterClient(clientID string) *BrokerClient {
	brokerLock.Lock()
	defer brokerLock.Unlock()

	client := &BrokerClient{
		ID:     clientID,
		Events: make(chan models.ChannelEvent, 16),
	}
	brokerClients[clientID] = client
	return client
}

func UnregisterClient(clientID string) {
	brokerLock.Lock()
	defer brokerLock.Unlock()

	client, ok := brokerClients[clientID]
	if !ok {
		return
	}
	for _, subscribers := range brokerChannels {
		delete(subscribers, clientID)
	}
	delete(brokerClients, clientID)
	close(client.Events)
}

func SubscribeChannel(clientID, channel string) {
	brokerLock.Lock()
	defer brokerLock.Unlock()

	client, ok := brokerClients[clientID]
	if !ok {
		return
	}
	if _, ok := brokerChannels[channel]; !ok {
		brokerChannels[channel] = make(map[string]*BrokerClient)
	}
	brokerChannels[channel][clientID] = client
}

func UnsubscribeChannel(clientID, channel string) {
	brokerLock.Lock()
	defer brokerLock.Unlock()

	if subscribers, ok := brokerChannels[channel]; ok {
		delete(subscribers, clientID)
	}
}

// PublishEvent fans an event out to every subscriber of the channel. Delivery
// is non-blocking; a subscriber that cannot keep up loses the event. The sends
// happen under the registry lock so a concurrent unregister cannot close a
// channel mid-fan-out.
func PublishEvent(channel string, event models.ChannelEvent) {
	brokerLock.Lock()
	defer brokerLock.Unlock()

	for _, client := range brokerChannels[channel] {
		select {
		case client.Events <- event:
		default:
			log.Warn().Str("client", client.ID).Str("type", event.Type).Msg("Dropped channel event for a slow subscriber...")
		}
	}
}
