package channeldb

import "testing"

func TestDeriveActionIDIsDeterministic(t *testing.T) {
	key := ChannelKey{TokenNetwork: Address{0x01}, ChannelID: 3}

	id1 := DeriveActionID(ActionMonitoringTriggered, key, 26)
	id2 := DeriveActionID(ActionMonitoringTriggered, key, 26)
	if id1 != id2 {
		t.Fatalf("expected deterministic id, got %s and %s", id1, id2)
	}
}

func TestDeriveActionIDVariesWithEachComponent(t *testing.T) {
	key := ChannelKey{TokenNetwork: Address{0x01}, ChannelID: 3}
	base := DeriveActionID(ActionMonitoringTriggered, key, 26)

	if other := DeriveActionID(ActionClaimRewardTriggered, key, 26); other == base {
		t.Fatal("expected id to vary with ActionKind")
	}
	if other := DeriveActionID(ActionMonitoringTriggered, ChannelKey{TokenNetwork: Address{0x02}, ChannelID: 3}, 26); other == base {
		t.Fatal("expected id to vary with TokenNetwork")
	}
	if other := DeriveActionID(ActionMonitoringTriggered, ChannelKey{TokenNetwork: Address{0x01}, ChannelID: 4}, 26); other == base {
		t.Fatal("expected id to vary with ChannelID")
	}
	if other := DeriveActionID(ActionMonitoringTriggered, key, 27); other == base {
		t.Fatal("expected id to vary with TriggerBlock")
	}
}
