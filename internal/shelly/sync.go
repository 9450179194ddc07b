package shelly

import (
	"context"

	"github.com/damianarielmauro/Shelly-App/internal/device"
)

// SyncDatabase performs a one-shot reconciliation of adapter-reported
// devices into the device table. Devices are matched by IP; reports
// without an IP cannot be matched and are skipped. Returns the number of
// updated and inserted rows. The underlying repository applies the whole
// batch in a single transaction.
func SyncDatabase(ctx context.Context, c *Client, repo device.Repository) (updated, inserted int, err error) {
	reported := c.ListDevices(ctx)

	records := make([]device.SyncRecord, 0, len(reported))
	for _, d := range reported {
		if d.IP == "" {
			continue
		}
		records = append(records, device.SyncRecord{
			AdapterID: d.ID,
			Name:      d.Name,
			IP:        d.IP,
			Type:      d.Type,
			IsOn:      d.State,
			Power:     d.PowerWatts(),
		})
	}

	return repo.Sync(ctx, records)
}
