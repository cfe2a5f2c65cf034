package sensing

import (
	"fmt"

	"github.com/signalsfoundry/sensornet-simulator/model"
	"github.com/signalsfoundry/sensornet-simulator/scenario"
)

// CommDeviceName is the peripheral name both stock nodes register their
// radio under.
const CommDeviceName = "COMM_DEVICE"

// NewNode builds a node from scenario hardware: a mode-tabled processor, a
// memory, a battery, and a communication device registered as CommDeviceName.
func NewNode(name string, hw scenario.NodeHardware) (*model.Node, error) {
	processor, err := model.NewProcessor(
		"PROCESSOR",
		hw.IopsPerSecond,
		hw.FlopsPerSecond,
		hw.ProcessorModes,
		model.ModeIdle,
	)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", name, err)
	}

	memory := model.NewMemory("MEMORY")
	battery := model.NewBattery("BATTERY", hw.BatteryPotentialVolts, hw.BatteryChargeCoulombs)

	node, err := model.NewNode(name, processor, memory, battery)
	if err != nil {
		return nil, err
	}

	radio, err := model.NewCommunicationDevice(CommDeviceName, hw.CommunicationModes, model.ModeIdle)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", name, err)
	}
	if err := node.AddPeripheral(radio); err != nil {
		return nil, err
	}
	return node, nil
}
