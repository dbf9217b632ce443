package mqtt

import "fmt"

// Topic prefixes for the catalog's outbound messages.
const (
	// TopicPrefix is the root shared with the rest of Gray Logic.
	TopicPrefix = "graylogic"

	// TopicPrefixCatalog is the base for all catalog topics.
	TopicPrefixCatalog = TopicPrefix + "/catalog"
)

// Topics provides builders for catalog MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.CatalogSource("zigbee2mqtt")
//	// Returns: "graylogic/catalog/source/zigbee2mqtt"
type Topics struct{}

// CatalogReport returns the retained topic holding the latest update report.
//
// Example: graylogic/catalog/report
func (Topics) CatalogReport() string {
	return TopicPrefixCatalog + "/report"
}

// CatalogSource returns the retained topic holding a source's latest result.
//
// Example: graylogic/catalog/source/zigbee2mqtt
func (Topics) CatalogSource(sourceID string) string {
	return fmt.Sprintf("%s/source/%s", TopicPrefixCatalog, sourceID)
}

// SystemStatus returns the topic for catalog online/offline status.
//
// Example: graylogic/catalog/status
func (Topics) SystemStatus() string {
	return TopicPrefixCatalog + "/status"
}

// AllCatalogSources returns a wildcard matching every source topic.
//
// Example: graylogic/catalog/source/+
func (Topics) AllCatalogSources() string {
	return TopicPrefixCatalog + "/source/+"
}
