package prebuilt

import (
	"github.com/flowsim/flowsim/internal/core/flowsheet"
	"github.com/flowsim/flowsim/pkg/config"
)

// influentComposition is a constant influent stream: 13 concentration
// components, temperature and auxiliary slots, with the volumetric flow
// at index 14.
var influentComposition = []float64{
	30, 69.5, 51.2, 202.32, 28.17, 0, 0, 0, 0,
	31.56, 6.95, 10.59, 7, 211.2675, 18446, 15, 0, 0, 0, 0, 0,
}

// RecyclePlant returns an activated-sludge style plant with two feedback
// streams: an internal recycle from the last reactor back to the feed
// combiner, and a return-sludge stream from the clarifier. The planner
// collapses the whole train into a single loop stage.
func RecyclePlant() *config.Document {
	return &config.Document{
		Flowsheet: config.Info{
			ID:          "recycle-plant",
			Name:        "Recycle plant with internal and sludge recycles",
			StreamWidth: flowsheet.DefaultStreamWidth,
		},
		Simulation: config.Simulation{
			Timestep:      1.0 / 96,
			EndTime:       1.0 / 96,
			Tolerance:     1e-6,
			MaxIterations: 200,
			Relaxation:    1.0,
		},
		Parameters: map[string]any{
			"influent_composition": influentComposition,
			"q_internal_recycle":   55338.0,
			"q_return_sludge":      18446.0,
			"vol_reactor_anoxic":   1000.0,
			"vol_reactor_aerated":  1333.0,
			"rate_decay":           0.1,
		},
		Nodes: []config.NodeDescriptor{
			{
				ID: "influent", Type: "source", Label: "Plant influent",
				Parameters: map[string]any{"output": "influent_composition"},
				Outputs:    []string{"out"},
			},
			{
				ID: "feed_mix", Type: "combiner", Label: "Feed combiner",
				Inputs:  []string{"in_fresh", "in_recycle", "in_sludge"},
				Outputs: []string{"out"},
			},
			{
				ID: "reactor1", Type: "cstr", Label: "Anoxic reactor",
				Parameters: map[string]any{"volume": "vol_reactor_anoxic", "rate": "rate_decay"},
				Inputs:     []string{"in"}, Outputs: []string{"out"},
			},
			{
				ID: "reactor2", Type: "cstr", Label: "Aerated reactor",
				Parameters: map[string]any{"volume": "vol_reactor_aerated", "rate": "rate_decay"},
				Inputs:     []string{"in"}, Outputs: []string{"out"},
			},
			{
				ID: "recycle_split", Type: "splitter", Label: "Internal recycle split",
				Parameters: map[string]any{"side_flow": "q_internal_recycle"},
				Inputs:     []string{"in"}, Outputs: []string{"out", "side"},
			},
			{
				ID: "clarifier", Type: "splitter", Label: "Secondary clarifier",
				Parameters: map[string]any{"side_flow": "q_return_sludge"},
				Inputs:     []string{"in"}, Outputs: []string{"out", "side"},
			},
			{
				ID: "effluent", Type: "sink", Label: "Plant effluent",
				Inputs: []string{"in"}, Outputs: []string{"out"},
			},
		},
		Edges: []config.EdgeDescriptor{
			{ID: "e_influent", SourceNode: "influent", SourcePort: "out", TargetNode: "feed_mix", TargetPort: "in_fresh"},
			{ID: "e_feed", SourceNode: "feed_mix", SourcePort: "out", TargetNode: "reactor1", TargetPort: "in"},
			{ID: "e_r1_r2", SourceNode: "reactor1", SourcePort: "out", TargetNode: "reactor2", TargetPort: "in"},
			{ID: "e_r2_split", SourceNode: "reactor2", SourcePort: "out", TargetNode: "recycle_split", TargetPort: "in"},
			{ID: "e_internal_recycle", SourceNode: "recycle_split", SourcePort: "side", TargetNode: "feed_mix", TargetPort: "in_recycle"},
			{ID: "e_to_clarifier", SourceNode: "recycle_split", SourcePort: "out", TargetNode: "clarifier", TargetPort: "in"},
			{ID: "e_return_sludge", SourceNode: "clarifier", SourcePort: "side", TargetNode: "feed_mix", TargetPort: "in_sludge"},
			{ID: "e_effluent", SourceNode: "clarifier", SourcePort: "out", TargetNode: "effluent", TargetPort: "in"},
		},
		Observe: []string{"e_effluent", "e_return_sludge"},
	}
}

// ContractionLoop returns a two-node cycle whose loop map is the
// contraction x -> 0.5*x + [1, 1]. The fixed point is [2, 2], so the
// executor converges from a zero guess in a few dozen iterations.
func ContractionLoop() *config.Document {
	return &config.Document{
		Flowsheet: config.Info{
			ID:          "contraction-loop",
			Name:        "Two-node contraction loop",
			StreamWidth: 2,
		},
		Simulation: config.Simulation{
			Timestep:      1.0,
			EndTime:       1.0,
			Tolerance:     1e-6,
			MaxIterations: 100,
			Relaxation:    1.0,
		},
		Nodes: []config.NodeDescriptor{
			{
				ID: "halver", Type: "gain", Label: "Contraction map",
				Parameters: map[string]any{"gain": 0.5, "offset": []float64{1, 1}},
				Inputs:     []string{"in"}, Outputs: []string{"out"},
			},
			{
				ID: "relay", Type: "gain", Label: "Identity relay",
				Parameters: map[string]any{"gain": 1.0},
				Inputs:     []string{"in"}, Outputs: []string{"out"},
			},
		},
		Edges: []config.EdgeDescriptor{
			{ID: "e_forward", SourceNode: "halver", SourcePort: "out", TargetNode: "relay", TargetPort: "in"},
			{ID: "e_back", SourceNode: "relay", SourcePort: "out", TargetNode: "halver", TargetPort: "in"},
		},
		Observe: []string{"e_forward"},
	}
}
