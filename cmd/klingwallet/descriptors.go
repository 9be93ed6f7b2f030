package main

import (
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/urfave/cli/v2"
)

var descriptors = cli.Command{
	Name:   "descriptors",
	Usage:  "print the public descriptors of every keychain",
	Action: descriptorsAction,
}

func descriptorsAction(c *cli.Context) error {
	s, err := openWallet(c)
	if err != nil {
		return err
	}
	defer s.Close()

	descs := s.store.Descriptors()
	keychains := make([]types.Keychain, 0, len(descs))
	for k := range descs {
		keychains = append(keychains, k)
	}
	types.SortKeychains(keychains)

	type entry struct {
		Keychain   string `json:"keychain"`
		Descriptor string `json:"descriptor"`
		Revealed   *int64 `json:"last_revealed,omitempty"`
	}
	out := make([]entry, 0, len(keychains))
	for _, k := range keychains {
		e := entry{Keychain: k.String(), Descriptor: descs[k]}
		if idx, ok := s.store.LastRevealed(k); ok {
			v := int64(idx)
			e.Revealed = &v
		}
		out = append(out, e)
	}
	return printJSON(out)
}
