package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/block-0x/signet/internal/controller"
	"github.com/block-0x/signet/internal/network"
)

func renderState(w io.Writer, st controller.State, catalog *network.Catalog) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendSeparator()

	t.AppendRow(table.Row{"Status", st.Phase})
	t.AppendRow(table.Row{"Account", orNA(st.Account)})
	t.AppendRow(table.Row{"Chain", chainLabel(st.ChainID, catalog)})
	t.AppendRow(table.Row{"Message", fmt.Sprintf("%q", st.Message)})
	if st.Signature != "" {
		t.AppendRow(table.Row{"Signed message", fmt.Sprintf("%q", st.SignedMessage)})
		t.AppendRow(table.Row{"Signature", st.Signature})
	}
	t.AppendRow(table.Row{"Signature state", st.SignaturePhase()})
	if st.NetworkTarget != 0 {
		t.AppendRow(table.Row{"Network target", chainLabel(st.NetworkTarget, catalog)})
	}
	if st.Error != nil {
		t.AppendRow(table.Row{"Error", fmt.Sprintf("%s: %s", st.Error.Kind, st.Error.Message)})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 80},
	})
	t.Render()
}

func renderNetworks(w io.Writer, catalog *network.Catalog) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Hex", "Name", "Currency", "RPC"})
	t.AppendSeparator()

	for _, n := range catalog.All() {
		t.AppendRow(table.Row{n.ChainID, n.HexID(), n.ChainName, n.NativeCurrency.Symbol, strings.Join(n.RPCURLs, "\n")})
	}
	t.Render()
}

func chainLabel(id uint64, catalog *network.Catalog) string {
	if id == 0 {
		return "N/A"
	}
	if n, ok := catalog.Lookup(network.ToHex(id)); ok {
		return fmt.Sprintf("%d (%s)", id, n.ChainName)
	}
	return fmt.Sprintf("%d", id)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
