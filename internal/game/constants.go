package game

// Tuning values for the turn engine. Speeds, damage and income rates are part
// of the game balance and referenced by the scenario tests.
const (
	// World generation
	gridWidth      = 1000.0
	gridHeight     = 1000.0
	gridMargin     = 50.0
	planetCount    = 12
	startCredits   = 1000
	homePopulation = 100.0

	// Planet caps
	MaxPopulation = 10000.0
	MaxFactories  = 50
	MaxMines      = 50

	// Build costs
	MineCost     = 100
	FactoryCost  = 150
	ResearchCost = 400

	// Colonization
	colonySeedPopulation = 10.0

	// Combat
	warshipBaseDamage  = 25.0
	factoryDamageBonus = 0.5
	weaponTechBonus    = 2.0
	shieldFactoryMin   = 5
	shieldChance       = 0.10
	bombardFraction    = 0.10

	// Economy & growth
	incomePerMine       = 50
	incomePerFactory    = 20
	incomePerPopulation = 50
	boomFactoryMin      = 5
	boomMineMin         = 10
	boomGrowth          = 1.0
	// baselineGrowth is the per-round population gain on owned planets that
	// do not meet the boom thresholds.
	baselineGrowth = 0.0

	// Repair rate for ships orbiting a friendly planet out of combat.
	repairFraction = 0.25

	// Each engine tech level adds 10% to ship speed.
	engineTechBonus = 0.10
)

var planetNames = []string{
	"Sol", "Alpha Centauri", "Sirius", "Vega", "Altair", "Rigel",
	"Procyon", "Deneb", "Arcturus", "Capella", "Antares", "Spica",
}
