package rest

import "fmt"

// Route is one API endpoint invocation. Path is the concrete request path;
// Key identifies the rate limit route, with only the major parameters bound.
//
// Two requests to the same endpoint template with different minor parameters
// (message ids, user ids) share a Key and therefore a rate limit bucket. The
// major parameters (channel id, guild id, webhook id) keep their concrete
// values in the Key because the platform scopes limits per resource.
type Route struct {
	Method string
	Path   string
	Key    string
}

func newRoute(method, path, key string) Route {
	return Route{Method: method, Path: path, Key: method + " " + key}
}

// GatewayBotRoute returns the route for gateway connection info.
func GatewayBotRoute() Route {
	return newRoute("GET", "/gateway/bot", "/gateway/bot")
}

// ChannelRoute returns the route for fetching a single channel.
func ChannelRoute(channelID string) Route {
	p := fmt.Sprintf("/channels/%s", channelID)
	return newRoute("GET", p, p)
}

// ChannelMessagesRoute returns the route for creating a message in a channel.
func ChannelMessagesRoute(channelID string) Route {
	return newRoute("POST",
		fmt.Sprintf("/channels/%s/messages", channelID),
		fmt.Sprintf("/channels/%s/messages", channelID))
}

// ChannelMessageRoute returns the route for operating on a single message.
// The message id is a minor parameter: it appears in Path but not in Key.
func ChannelMessageRoute(method, channelID, messageID string) Route {
	return newRoute(method,
		fmt.Sprintf("/channels/%s/messages/%s", channelID, messageID),
		fmt.Sprintf("/channels/%s/messages/{message.id}", channelID))
}
