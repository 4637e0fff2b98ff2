// Package bridge mirrors materialised entities onto MQTT.
//
// On every poll tick the bridge publishes retained state and availability
// messages for each entity, using change detection so unchanged values do
// not generate traffic. Incoming command messages are translated into
// backend writes through the entity layer, which forces a coordinator
// refresh so the published state reflects the write immediately.
//
// Observed transitions are recorded into the history store: poll-observed
// changes with source "poll", command-driven changes with source "command".
//
// Topic scheme (see the mqtt package for builders):
//
//	presence/state/{entity_id}         retained entity state
//	presence/availability/{entity_id}  retained "online"/"offline"
//	presence/command/{entity_id}       inbound commands
package bridge
