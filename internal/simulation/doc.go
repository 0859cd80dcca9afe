// Package simulation provides a scenario harness for validating the
// emergent properties of cascade experiments.
//
// The harness exercises the real topology generators, cascade engine,
// Monte Carlo runner and SQLiteResultStore with no mocks. Scenarios are Go
// values describing either a generated topology or an explicit graph, and
// the Runner executes them through the experiment pipeline, persisting each
// result so assertions can also check what was stored.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestReachGrows(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:     "ba-default",
//	        Topology: topology.Config{Kind: topology.KindBarabasiAlbert, Nodes: 300, Seed: 25, Attachments: 3},
//	        Cascade:  cascade.DefaultConfig(),
//	        Runs:     10,
//	    })
//	    simulation.AssertReachMonotone(t, result)
//	}
package simulation
