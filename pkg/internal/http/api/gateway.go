package api

import (
	"fmt"

	"github.com/auroracast/stagecast/pkg/internal/models"
	"github.com/auroracast/stagecast/pkg/internal/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// eventGateway is the websocket endpoint carrying channel events. Every
// connection is auto-subscribed to its own username channel; additional
// channels are watched on demand.
func eventGateway(c *websocket.Conn) {
	user := c.Locals("user").(models.Account)

	clientID := fmt.Sprintf("%s#%s", user.Username, uuid.NewString())
	client := services.RegisterClient(clientID)
	services.SubscribeChannel(clientID, user.Username)
	defer services.UnregisterClient(clientID)

	// Push loop; ends when the client gets unregistered. This is the only
	// writer on the connection, the read loop below never writes directly.
	go func() {
		for event := range client.Events {
			if err := c.WriteMessage(websocket.TextMessage, event.Marshal()); err != nil {
				return
			}
		}
	}()

	var command models.GatewayCommand

	for {
		_, packet, err := c.ReadMessage()
		if err != nil {
			break
		}
		if err := jsoniter.Unmarshal(packet, &command); err != nil {
			select {
			case client.Events <- models.NewChannelEvent("error", nil):
			default:
			}
			continue
		}

		switch command.Action {
		case "watch":
			services.SubscribeChannel(clientID, command.Channel)
		case "unwatch":
			services.UnsubscribeChannel(clientID, command.Channel)
		case "publish":
			var event models.ChannelEvent
			if err := jsoniter.Unmarshal(command.Payload, &event); err != nil {
				continue
			}
			services.PublishEvent(command.Channel, event)
		}
	}
}
