package mqtt

import "fmt"

// TopicPrefix is the base for all presence daemon topics.
//
// All topics use the flat scheme: presence/{category}/{entity_id}
const TopicPrefix = "presence"

// Topics provides builders for presence MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("aa:bb:cc:dd:ee:ff_block_internet")
//	// Returns: "presence/state/aa:bb:cc:dd:ee:ff_block_internet"
type Topics struct{}

// ServiceStatus returns the daemon status topic.
// The LWT message and online/offline announcements are published here.
//
// Example: presence/status
func (Topics) ServiceStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefix)
}

// EntityState returns the topic for an entity's state.
//
// Example: presence/state/aa:bb:cc:dd:ee:ff_block_internet
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, entityID)
}

// EntityAvailability returns the topic for an entity's availability.
//
// Example: presence/availability/global_dns_filter
func (Topics) EntityAvailability(entityID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, entityID)
}

// EntityCommand returns the topic for commands addressed to an entity.
//
// Example: presence/command/aa:bb:cc:dd:ee:ff_block_internet
func (Topics) EntityCommand(entityID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, entityID)
}

// AllCommands returns a pattern matching commands for every entity.
//
// Pattern: presence/command/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefix)
}

// AllStates returns a pattern matching all entity state updates.
//
// Pattern: presence/state/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllTopics returns a pattern matching all presence topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: presence/#
func (Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefix)
}
