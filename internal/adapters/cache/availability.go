package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/canchas/internal/domain"
	"github.com/Amund211/canchas/internal/logging"
)

const DefaultTTL = 1 * time.Hour

var ErrInvalidKey = errors.New("invalid cache key")

func ClubsKey(placeID string) string {
	return placeID
}

func CourtsKey(clubID int) string {
	return strconv.Itoa(clubID)
}

func SlotsKey(clubID, courtID int, date time.Time) string {
	return fmt.Sprintf("%s%s", courtSlotsPrefix(clubID, courtID), domain.DateKey(date))
}

// The trailing separator keeps court 1 from matching court 12
func courtSlotsPrefix(clubID, courtID int) string {
	return fmt.Sprintf("%d:%d:", clubID, courtID)
}

// AvailabilityCache holds clubs by place, courts by club and slots by court and date
type AvailabilityCache struct {
	clubs  *ttlCache[[]domain.Club]
	courts *ttlCache[[]domain.Court]
	slots  *ttlCache[[]domain.Slot]
}

func NewAvailabilityCache(ttl time.Duration, nowFunc func() time.Time) *AvailabilityCache {
	return &AvailabilityCache{
		clubs:  newTTLCache[[]domain.Club](ttl, nowFunc),
		courts: newTTLCache[[]domain.Court](ttl, nowFunc),
		slots:  newTTLCache[[]domain.Slot](ttl, nowFunc),
	}
}

// Stop the background reapers
func (c *AvailabilityCache) Stop() {
	c.clubs.stop()
	c.courts.stop()
	c.slots.stop()
}

func (c *AvailabilityCache) Clubs() Cache[[]domain.Club] {
	return c.clubs
}

func (c *AvailabilityCache) Courts() Cache[[]domain.Court] {
	return c.courts
}

func (c *AvailabilityCache) Slots() Cache[[]domain.Slot] {
	return c.slots
}

func (c *AvailabilityCache) GetClubs(placeID string) ([]domain.Club, bool) {
	return c.clubs.get(ClubsKey(placeID))
}

func (c *AvailabilityCache) SetClubs(placeID string, clubs []domain.Club) {
	c.clubs.set(ClubsKey(placeID), clubs)
}

func (c *AvailabilityCache) GetCourts(clubID int) ([]domain.Court, bool) {
	return c.courts.get(CourtsKey(clubID))
}

func (c *AvailabilityCache) SetCourts(clubID int, courts []domain.Court) {
	c.courts.set(CourtsKey(clubID), courts)
}

func (c *AvailabilityCache) GetSlots(clubID, courtID int, date time.Time) ([]domain.Slot, bool) {
	return c.slots.get(SlotsKey(clubID, courtID, date))
}

func (c *AvailabilityCache) SetSlots(clubID, courtID int, date time.Time, slots []domain.Slot) {
	c.slots.set(SlotsKey(clubID, courtID, date), slots)
}

// Entries returns the number of entries in each partition, including pending claims
func (c *AvailabilityCache) Entries() (clubs int, courts int, slots int) {
	return c.clubs.size(), c.courts.size(), c.slots.size()
}

func validateID(name string, id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s %d", ErrInvalidKey, name, id)
	}
	return nil
}

// InvalidateClub drops the club's courts and every place listing the club
func (c *AvailabilityCache) InvalidateClub(ctx context.Context, clubID int) error {
	if err := validateID("clubID", clubID); err != nil {
		return err
	}

	c.courts.delete(CourtsKey(clubID))
	places := c.deletePlacesListing(clubID)

	logging.FromContext(ctx).InfoContext(
		ctx, "Invalidated club",
		slog.Int("clubID", clubID),
		slog.Int("places", places),
	)
	return nil
}

// InvalidateClubInfo drops every place listing the club, keeping its courts
func (c *AvailabilityCache) InvalidateClubInfo(ctx context.Context, clubID int) error {
	if err := validateID("clubID", clubID); err != nil {
		return err
	}

	places := c.deletePlacesListing(clubID)

	logging.FromContext(ctx).InfoContext(
		ctx, "Invalidated club info",
		slog.Int("clubID", clubID),
		slog.Int("places", places),
	)
	return nil
}

// InvalidateCourt drops the court's slots for every date
func (c *AvailabilityCache) InvalidateCourt(ctx context.Context, clubID, courtID int) error {
	if err := validateID("clubID", clubID); err != nil {
		return err
	}
	if err := validateID("courtID", courtID); err != nil {
		return err
	}

	prefix := courtSlotsPrefix(clubID, courtID)
	dates := c.slots.deleteFunc(func(key string, _ []domain.Slot, _ bool) bool {
		return strings.HasPrefix(key, prefix)
	})

	logging.FromContext(ctx).InfoContext(
		ctx, "Invalidated court",
		slog.Int("clubID", clubID),
		slog.Int("courtID", courtID),
		slog.Int("dates", dates),
	)
	return nil
}

// InvalidateSlots drops the court's slots for a single date
func (c *AvailabilityCache) InvalidateSlots(ctx context.Context, clubID, courtID int, date time.Time) error {
	if err := validateID("clubID", clubID); err != nil {
		return err
	}
	if err := validateID("courtID", courtID); err != nil {
		return err
	}
	if date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidKey)
	}

	key := SlotsKey(clubID, courtID, date)
	c.slots.delete(key)

	logging.FromContext(ctx).InfoContext(ctx, "Invalidated slots", slog.String("key", key))
	return nil
}

// In-flight place lookups may list the club, so their claims are dropped too
func (c *AvailabilityCache) deletePlacesListing(clubID int) int {
	return c.clubs.deleteFunc(func(_ string, clubs []domain.Club, pending bool) bool {
		return pending || slices.ContainsFunc(clubs, func(club domain.Club) bool {
			return club.ID == clubID
		})
	})
}
