package schema

func existing(category string, dpID int, name string, vt ValueType, capability string, t *ValueTransform) DataPointDefinition {
	return DataPointDefinition{
		CategoryID: category,
		DPID:       dpID,
		Name:       name,
		ValueType:  vt,
		Capability: capability,
		Transform:  t,
		Confidence: ConfidenceHigh,
		Sources:    []string{SourceExisting},
	}
}

// DefaultDefinitions returns the curated data point table for the
// categories produced by the default classification rules.
func DefaultDefinitions() []DataPointDefinition {
	return []DataPointDefinition{
		existing("switch", 1, "state_l1", ValueBool, "onoff", nil),
		existing("switch", 2, "state_l2", ValueBool, "onoff_2", nil),
		existing("switch", 3, "state_l3", ValueBool, "onoff_3", nil),
		existing("switch", 4, "state_l4", ValueBool, "onoff_4", nil),
		existing("switch", 14, "power_on_behavior", ValueEnum, "power_on_behavior", &ValueTransform{
			EnumMap: map[string]string{"0": "off", "1": "on", "2": "previous"},
		}),

		existing("dimmer", 1, "state", ValueBool, "onoff", nil),
		existing("dimmer", 2, "brightness", ValueNumber, "dim", &ValueTransform{Max: 1000}),
		existing("dimmer", 3, "min_brightness", ValueNumber, "dim_min", &ValueTransform{Max: 1000}),

		existing("plug", 1, "state", ValueBool, "onoff", nil),
		existing("plug", 18, "current", ValueNumber, "measure_current", &ValueTransform{Divide: 1000}),
		existing("plug", 19, "power", ValueNumber, "measure_power", &ValueTransform{Divide: 10}),
		existing("plug", 20, "voltage", ValueNumber, "measure_voltage", &ValueTransform{Divide: 10}),

		existing("cover", 1, "control", ValueEnum, "windowcoverings_state", &ValueTransform{
			EnumMap: map[string]string{"open": "up", "stop": "idle", "close": "down"},
		}),
		existing("cover", 2, "position", ValueNumber, "windowcoverings_set", &ValueTransform{Max: 100}),

		existing("thermostat", 2, "current_heating_setpoint", ValueNumber, "target_temperature", &ValueTransform{Divide: 10}),
		existing("thermostat", 3, "local_temperature", ValueNumber, "measure_temperature", &ValueTransform{Divide: 10}),
		existing("thermostat", 4, "system_mode", ValueEnum, "thermostat_mode", &ValueTransform{
			EnumMap: map[string]string{"0": "auto", "1": "heat", "2": "off"},
		}),

		existing("sensor", 1, "temperature", ValueNumber, "measure_temperature", &ValueTransform{Divide: 10}),
		existing("sensor", 2, "humidity", ValueNumber, "measure_humidity", nil),
		existing("sensor", 4, "battery", ValueNumber, "measure_battery", nil),

		existing("light", 20, "state", ValueBool, "onoff", nil),
		existing("light", 22, "brightness", ValueNumber, "dim", &ValueTransform{Max: 1000}),
		existing("light", 24, "color", ValueHexColor, "light_hue", nil),

		existing("remote", 1, "action", ValueEnum, "button_action", &ValueTransform{
			EnumMap: map[string]string{"0": "single", "1": "double", "2": "hold"},
		}),
	}
}
