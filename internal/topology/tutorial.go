package topology

import "fmt"

// tutorialLinks are the router-to-router links of the SRv6 uSID tutorial
// network, in declaration order.
var tutorialLinks = [][2]NodeRef{
	{"r1", "r4"}, {"r1", "r9"},
	{"r2", "r3"}, {"r2", "r14"},
	{"r9", "r4"}, {"r9", "r10"}, {"r9", "r13"}, {"r9", "r14"},
	{"r14", "r10"}, {"r14", "r3"}, {"r14", "r13"},
	{"r4", "r5"}, {"r4", "r10"},
	{"r3", "r13"}, {"r3", "r6"},
	{"r10", "r5"}, {"r10", "r11"}, {"r10", "r12"}, {"r10", "r13"},
	{"r13", "r11"}, {"r13", "r12"}, {"r13", "r6"},
	{"r5", "r8"}, {"r5", "r11"},
	{"r6", "r7"}, {"r6", "r12"},
	{"r11", "r8"}, {"r11", "r12"},
	{"r12", "r7"},
	{"r8", "r7"},
}

const tutorialRouters = 14

// DeclareTutorial declares the SRv6 uSID tutorial network on b:
//
//	Site A --- r1 ... r4 - r5 - r8 ... (transit mesh r3..r14) ... r2 --- Site B
//
// r1 and r2 are the end routers serving h1 and h2; r3 to r14 are transit
// routers.
func DeclareTutorial(b *Builder) error {
	for i := 1; i <= tutorialRouters; i++ {
		cfg := SwitchConfig{
			StationMAC: fmt.Sprintf("00:aa:00:00:00:%02x", i),
			USID:       fmt.Sprintf("fcbb:bb00:%d::", i),
			Core:       i > 2,
		}
		if _, err := b.AddSwitch(fmt.Sprintf("r%d", i), ClassStratumBmv2, cfg); err != nil {
			return err
		}
	}

	for _, l := range tutorialLinks {
		if _, err := b.AddLink(l[0], l[1]); err != nil {
			return err
		}
	}

	h1, err := b.AddHost("h1", ClassIPv6Host, HostConfig{
		MAC:     "00:00:00:00:00:10",
		IPv6:    "2001:1:1::1/64",
		Gateway: "2001:1:1::ff",
	})
	if err != nil {
		return err
	}

	h2, err := b.AddHost("h2", ClassIPv6Host, HostConfig{
		MAC:     "00:00:00:00:00:20",
		IPv6:    "2001:1:2::1/64",
		Gateway: "2001:1:2::ff",
	})
	if err != nil {
		return err
	}

	if _, err := b.AddLink(h1, "r1"); err != nil {
		return err
	}
	if _, err := b.AddLink(h2, "r2"); err != nil {
		return err
	}

	return nil
}
