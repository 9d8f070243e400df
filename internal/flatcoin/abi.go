package flatcoin

// ABIs below mirror the deployed Flatcoin contracts. They are a fixed external
// boundary: a mismatch shows up as a pack/unpack error, not a logic bug.

const limitOrderABIJSON = `[
  {"inputs":[
    {"internalType":"uint256","name":"tokenId","type":"uint256"},
    {"internalType":"bytes[]","name":"priceUpdateData","type":"bytes[]"}
  ],"name":"executeLimitOrder","outputs":[],"stateMutability":"payable","type":"function"}
]`

const positionDataComponents = `[
      {"internalType":"uint256","name":"tokenId","type":"uint256"},
      {"internalType":"uint256","name":"averagePrice","type":"uint256"},
      {"internalType":"uint256","name":"marginDeposited","type":"uint256"},
      {"internalType":"uint256","name":"additionalSize","type":"uint256"},
      {"internalType":"int256","name":"entryCumulativeFunding","type":"int256"},
      {"internalType":"int256","name":"profitLoss","type":"int256"},
      {"internalType":"int256","name":"accruedFunding","type":"int256"},
      {"internalType":"int256","name":"marginAfterSettlement","type":"int256"},
      {"internalType":"uint256","name":"liquidationPrice","type":"uint256"},
      {"internalType":"uint256","name":"limitOrderPriceLowerThreshold","type":"uint256"},
      {"internalType":"uint256","name":"limitOrderPriceUpperThreshold","type":"uint256"}
    ]`

const viewerSingleABIJSON = `[
  {"inputs":[
    {"internalType":"uint256","name":"tokenId","type":"uint256"}
  ],"name":"getPositionData","outputs":[
    {"components":` + positionDataComponents + `,"internalType":"struct FlatcoinStructs.LeveragePositionData","name":"positionData","type":"tuple"}
  ],"stateMutability":"view","type":"function"}
]`

const viewerRangeABIJSON = `[
  {"inputs":[
    {"internalType":"uint256","name":"tokenIdFrom","type":"uint256"},
    {"internalType":"uint256","name":"tokenIdTo","type":"uint256"}
  ],"name":"getPositionData","outputs":[
    {"components":` + positionDataComponents + `,"internalType":"struct FlatcoinStructs.LeveragePositionData[]","name":"positionData","type":"tuple[]"}
  ],"stateMutability":"view","type":"function"}
]`

const leverageModuleABIJSON = `[
  {"inputs":[],"name":"tokenIdNext","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// ErrorsABIJSON lists the custom errors the Flatcoin modules revert with.
// Builtin Error(string) and Panic(uint256) are handled by the revert package.
const ErrorsABIJSON = `[
  {"inputs":[{"internalType":"uint256","name":"amount","type":"uint256"},{"internalType":"uint256","name":"minAmount","type":"uint256"}],"name":"AmountTooSmall","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"CannotLiquidate","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"collateralCap","type":"uint256"}],"name":"DepositCapReached","type":"error"},
  {"inputs":[],"name":"ETHPriceInvalid","type":"error"},
  {"inputs":[],"name":"ETHPriceStale","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"executableTime","type":"uint256"}],"name":"ExecutableTimeNotReached","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"supplied","type":"uint256"},{"internalType":"uint256","name":"accepted","type":"uint256"}],"name":"HighSlippage","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"fee","type":"uint256"}],"name":"InvalidFee","type":"error"},
  {"inputs":[],"name":"InvalidLeverageCriteria","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"priceLowerThreshold","type":"uint256"},{"internalType":"uint256","name":"priceUpperThreshold","type":"uint256"}],"name":"InvalidThresholds","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"leverageMax","type":"uint256"},{"internalType":"uint256","name":"leverage","type":"uint256"}],"name":"LeverageTooHigh","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"leverageMin","type":"uint256"},{"internalType":"uint256","name":"leverage","type":"uint256"}],"name":"LeverageTooLow","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"LimitOrderInvalid","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"price","type":"uint256"},{"internalType":"uint256","name":"priceLowerThreshold","type":"uint256"},{"internalType":"uint256","name":"priceUpperThreshold","type":"uint256"}],"name":"LimitOrderPriceNotInRange","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"marginMin","type":"uint256"},{"internalType":"uint256","name":"margin","type":"uint256"}],"name":"MarginTooSmall","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"maxFillPrice","type":"uint256"},{"internalType":"uint256","name":"currentPrice","type":"uint256"}],"name":"MaxFillPriceTooLow","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"skewFraction","type":"uint256"}],"name":"MaxSkewReached","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"minFillPrice","type":"uint256"},{"internalType":"uint256","name":"currentPrice","type":"uint256"}],"name":"MinFillPriceTooHigh","type":"error"},
  {"inputs":[],"name":"ModuleKeyEmpty","type":"error"},
  {"inputs":[{"internalType":"int256","name":"marginAmount","type":"int256"},{"internalType":"uint256","name":"feeAmount","type":"uint256"}],"name":"NotEnoughMarginForFees","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"tokenId","type":"uint256"},{"internalType":"address","name":"msgSender","type":"address"}],"name":"NotTokenOwner","type":"error"},
  {"inputs":[{"internalType":"address","name":"msgSender","type":"address"}],"name":"OnlyAuthorizedModule","type":"error"},
  {"inputs":[{"internalType":"address","name":"msgSender","type":"address"}],"name":"OnlyOwner","type":"error"},
  {"inputs":[],"name":"OrderHasExpired","type":"error"},
  {"inputs":[],"name":"OrderHasNotExpired","type":"error"},
  {"inputs":[{"internalType":"bytes32","name":"moduleKey","type":"bytes32"}],"name":"Paused","type":"error"},
  {"inputs":[],"name":"PositionCreatesBadDebt","type":"error"},
  {"inputs":[],"name":"PriceImpactDuringFullWithdraw","type":"error"},
  {"inputs":[],"name":"PriceImpactDuringWithdraw","type":"error"},
  {"inputs":[{"internalType":"enum FlatcoinErrors.PriceSource","name":"priceSource","type":"uint8"}],"name":"PriceInvalid","type":"error"},
  {"inputs":[{"internalType":"uint256","name":"diffPercent","type":"uint256"}],"name":"PriceMismatch","type":"error"},
  {"inputs":[{"internalType":"enum FlatcoinErrors.PriceSource","name":"priceSource","type":"uint8"}],"name":"PriceStale","type":"error"},
  {"inputs":[],"name":"RefundFailed","type":"error"},
  {"inputs":[{"internalType":"string","name":"variableName","type":"string"}],"name":"ValueNotPositive","type":"error"},
  {"inputs":[{"internalType":"string","name":"variableName","type":"string"}],"name":"ZeroAddress","type":"error"},
  {"inputs":[{"internalType":"string","name":"variableName","type":"string"}],"name":"ZeroValue","type":"error"}
]`
