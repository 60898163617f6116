package stacks

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/thoughtful-python/infra/internal/dashboard"
	"github.com/thoughtful-python/infra/pkg/config"
)

const (
	errorAlarmThreshold = 5
	errorAlarmPeriod    = 300
	errorAlarmPeriods   = 2
)

// OverviewArgs configures the overview stack.
type OverviewArgs struct {
	Config  *config.Config
	Compute *Compute
	Tags    pulumi.StringMap
}

// Overview holds the activity dashboard and the per function error alarms.
type Overview struct {
	pulumi.ResourceState

	Dashboard *cloudwatch.Dashboard
	Alarms    []*cloudwatch.MetricAlarm
}

// NewOverview declares the dashboard and alarms for every compute function.
func NewOverview(ctx *pulumi.Context, name string, args *OverviewArgs, opts ...pulumi.ResourceOption) (*Overview, error) {
	o := &Overview{}
	if err := ctx.RegisterComponentResource("thoughtful:stacks:Overview", name, o, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(o)

	var functions []dashboard.Function
	for _, id := range args.Compute.Order {
		fn := args.Compute.Functions[id]
		functions = append(functions, dashboard.Function{Label: fn.Spec.NameSuffix, Name: fn.FunctionName})
	}

	body, err := dashboard.Build(args.Config.Region, functions).JSON()
	if err != nil {
		return nil, err
	}

	board, err := cloudwatch.NewDashboard(ctx, "LambdaDashboard", &cloudwatch.DashboardArgs{
		DashboardName: pulumi.String(args.Config.Qualify(dashboard.Name)),
		DashboardBody: pulumi.String(body),
	}, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard: %w", err)
	}
	o.Dashboard = board

	for _, id := range args.Compute.Order {
		fn := args.Compute.Functions[id]
		alarm, err := cloudwatch.NewMetricAlarm(ctx, string(id)+"-errors", &cloudwatch.MetricAlarmArgs{
			Name:               pulumi.String(fn.FunctionName + "-errors"),
			ComparisonOperator: pulumi.String("GreaterThanThreshold"),
			EvaluationPeriods:  pulumi.Int(errorAlarmPeriods),
			MetricName:         pulumi.String("Errors"),
			Namespace:          pulumi.String("AWS/Lambda"),
			Period:             pulumi.Int(errorAlarmPeriod),
			Statistic:          pulumi.String("Sum"),
			Threshold:          pulumi.Float64(errorAlarmThreshold),
			TreatMissingData:   pulumi.String("notBreaching"),
			AlarmDescription:   pulumi.String(fmt.Sprintf("Alert when %s has errors", fn.FunctionName)),
			Dimensions: pulumi.StringMap{
				"FunctionName": fn.Name,
			},
			Tags: args.Tags,
		}, parent)
		if err != nil {
			return nil, fmt.Errorf("failed to create error alarm for %s: %w", id, err)
		}
		o.Alarms = append(o.Alarms, alarm)
	}

	if err := ctx.RegisterResourceOutputs(o, pulumi.Map{
		"dashboardName": board.DashboardName,
	}); err != nil {
		return nil, err
	}
	return o, nil
}
