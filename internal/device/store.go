package device

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lorabridge/bridge-core/internal/infrastructure/kv"
)

// Snapshot key layout. Each device slot i contributes:
//
//	dev<i>_id       stable sensor identifier
//	dev<i>_name     display name
//	dev<i>_temp     capability flags, "1" or "0"
//	dev<i>_hum
//	dev<i>_batt
//	dev<i>_light
//	dev<i>_motion
//	dev<i>_contact
//	dev<i>_ctype    contact subtype as a decimal int
//	dev<i>_mtype    motion subtype as a decimal int
//
// plus a single dev_count key. Current values, accessory identifiers and
// timestamps are deliberately absent: they are rebuilt from live traffic
// and from the binding on every startup.
const countKey = "dev_count"

func slotKey(i int, field string) string {
	return fmt.Sprintf("dev%d_%s", i, field)
}

// Store persists device table snapshots in the durable key-value store.
type Store struct {
	kv *kv.Store
}

// NewStore creates a Store over the given KV namespace.
func NewStore(store *kv.Store) *Store {
	return &Store{kv: store}
}

// Save persists the full device table, replacing any previous snapshot.
//
// The save is clear-then-write in a single transaction: every key in the
// namespace is dropped and the snapshot rewritten, so keys from removed
// devices cannot linger.
func (s *Store) Save(ctx context.Context, devices []*Device) error {
	snapshot := make(map[string]string, len(devices)*10+1)
	snapshot[countKey] = strconv.Itoa(len(devices))

	for i, d := range devices {
		snapshot[slotKey(i, "id")] = d.ID
		snapshot[slotKey(i, "name")] = d.Name
		snapshot[slotKey(i, "temp")] = flag(d.HasTemperature)
		snapshot[slotKey(i, "hum")] = flag(d.HasHumidity)
		snapshot[slotKey(i, "batt")] = flag(d.HasBattery)
		snapshot[slotKey(i, "light")] = flag(d.HasLight)
		snapshot[slotKey(i, "motion")] = flag(d.HasMotion)
		snapshot[slotKey(i, "contact")] = flag(d.HasContact)
		snapshot[slotKey(i, "ctype")] = strconv.Itoa(int(d.ContactSubtype))
		snapshot[slotKey(i, "mtype")] = strconv.Itoa(int(d.MotionSubtype))
	}

	if err := s.kv.Replace(ctx, snapshot); err != nil {
		return fmt.Errorf("saving device snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted device table.
//
// Devices come back with their identity, name, capability flags and
// subtypes; values, LastSeen and ExternalID start zeroed. Slots with a
// missing identifier are skipped rather than failing the whole load - a
// half-written legacy snapshot should not brick the gateway.
//
// Returns:
//   - []*Device: Restored devices in slot order (possibly empty)
//   - error: ErrCorruptSnapshot wrapped if dev_count is unreadable
func (s *Store) Load(ctx context.Context) ([]*Device, error) {
	raw, err := s.kv.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading device snapshot: %w", err)
	}

	countStr, ok := raw[countKey]
	if !ok {
		return nil, nil // first boot, nothing persisted
	}

	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: dev_count=%q", ErrCorruptSnapshot, countStr)
	}
	if count > MaxDevices {
		count = MaxDevices
	}

	devices := make([]*Device, 0, count)
	for i := 0; i < count; i++ {
		id := raw[slotKey(i, "id")]
		if id == "" {
			continue
		}

		d := &Device{
			ID:             id,
			Name:           raw[slotKey(i, "name")],
			HasTemperature: raw[slotKey(i, "temp")] == "1",
			HasHumidity:    raw[slotKey(i, "hum")] == "1",
			HasBattery:     raw[slotKey(i, "batt")] == "1",
			HasLight:       raw[slotKey(i, "light")] == "1",
			HasMotion:      raw[slotKey(i, "motion")] == "1",
			HasContact:     raw[slotKey(i, "contact")] == "1",
			ContactSubtype: ContactType(parseSubtypeInt(raw[slotKey(i, "ctype")], int(ContactTypeOccupancy))),
			MotionSubtype:  MotionType(parseSubtypeInt(raw[slotKey(i, "mtype")], int(MotionTypeCO))),
		}
		if d.Name == "" {
			d.Name = d.ID
		}

		devices = append(devices, d)
	}

	return devices, nil
}

// Restore replaces the registry's contents with a loaded snapshot.
// Devices beyond capacity or with duplicate identifiers are dropped.
func (r *Registry) Restore(devices []*Device) {
	r.devices = make([]*Device, 0, MaxDevices)
	r.byID = make(map[string]*Device, MaxDevices)

	for _, d := range devices {
		if len(r.devices) >= MaxDevices {
			break
		}
		if _, dup := r.byID[d.ID]; dup {
			continue
		}
		r.devices = append(r.devices, d)
		r.byID[d.ID] = d
	}
}

// flag encodes a capability flag the way the snapshot stores it.
func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// parseSubtypeInt decodes a subtype ordinal, returning 0 for anything
// unparseable or out of range.
func parseSubtypeInt(s string, max int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > max {
		return 0
	}
	return n
}
