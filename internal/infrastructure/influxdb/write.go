package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFeeding records a feeding event for an animal.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Points are tagged by profile and animal so feeding history can be
// charted per animal or aggregated per keeper.
//
// Parameters:
//   - profileID: The owning profile's identifier
//   - animalID: The animal the feeding applies to
//   - foodType: What was fed (e.g., "cricket", "pinky mouse")
//   - quantity: How many items were fed
//   - fedAt: When the feeding took place
func (c *Client) WriteFeeding(profileID, animalID, foodType string, quantity int, fedAt time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"feedings",
		map[string]string{
			"profile_id": profileID,
			"animal_id":  animalID,
			"food_type":  foodType,
		},
		map[string]interface{}{
			"quantity": quantity,
		},
		fedAt,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
