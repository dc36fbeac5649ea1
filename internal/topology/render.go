package topology

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"awsinventory/internal/output/xlsx"
)

// EmptySheet is the only sheet of a workbook without load balancers
const EmptySheet = "No Load Balancers"

var header = []string{"Resource Type", "Name", "ID", "Additional Info"}

// Render writes one sheet per load balancer to the workbook at path
func Render(path string, topology *Topology) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := xlsx.NewStyles(f)
	if err != nil {
		return err
	}

	if len(topology.LoadBalancers) == 0 {
		if err := renderEmpty(f, styles); err != nil {
			return err
		}
	}

	namer := xlsx.NewSheetNamer("Sheet1", EmptySheet)
	for _, lb := range topology.LoadBalancers {
		sheet, err := xlsx.NewSheet(f, namer.Name(lb.Region+"_"+lb.Name), styles)
		if err != nil {
			return err
		}
		if err := renderLoadBalancer(sheet, lb); err != nil {
			return err
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	f.SetActiveSheet(0)
	return xlsx.Save(f, path)
}

func renderEmpty(f *excelize.File, styles xlsx.Styles) error {
	sheet, err := xlsx.NewSheet(f, EmptySheet, styles)
	if err != nil {
		return err
	}
	if err := sheet.Header(header...); err != nil {
		return err
	}
	if err := sheet.Row("Information", "No Load Balancers Found", "N/A", "No load balancers were found in the AWS inventory."); err != nil {
		return err
	}
	return sheet.Finish()
}

func renderLoadBalancer(sheet *xlsx.Sheet, lb LoadBalancer) error {
	if err := sheet.Header(header...); err != nil {
		return err
	}

	if gw := lb.Gateway; gw != nil {
		info := fmt.Sprintf("Type: %s, State: %s, VPC Attachments: %s", gw.Type, gw.State, strings.Join(gw.VPCAttachments, ", "))
		if err := sheet.Row("Internet Gateway", gw.Name, gw.ID, info); err != nil {
			return err
		}
	}

	scheme := "Internal"
	if lb.InternetFacing() {
		scheme = "Internet-Facing"
	}
	info := fmt.Sprintf("Type: %s, Scheme: %s, DNS: %s, VPC: %s", lb.Type, scheme, lb.DNSName, lb.VPCID)
	if err := sheet.Row("Load Balancer", lb.Name, lb.ID, info); err != nil {
		return err
	}

	for _, tg := range lb.TargetGroups {
		info := fmt.Sprintf("Protocol: %s, Port: %s, Health Check: %s, Target Type: %s",
			tg.Protocol, tg.Port, tg.HealthCheckProtocol, tg.TargetType)
		if err := sheet.Row("Target Group", tg.Name, tg.ID, info); err != nil {
			return err
		}
		if err := renderBackends(sheet, tg.Instances, tg.Databases); err != nil {
			return err
		}
	}
	if err := renderBackends(sheet, lb.Instances, lb.Databases); err != nil {
		return err
	}
	return sheet.Finish()
}

func renderBackends(sheet *xlsx.Sheet, instances []Instance, databases []Database) error {
	for _, inst := range instances {
		health := inst.TargetHealth
		if health == "" {
			health = "N/A"
		}
		info := fmt.Sprintf("Type: %s, State: %s, IP: %s, Target Health: %s", inst.Type, inst.State, inst.PrivateIP, health)
		if inst.Port != "" {
			info += ", Port: " + inst.Port
		}
		if err := sheet.Row("Instance", inst.Name, inst.ID, info); err != nil {
			return err
		}
	}
	for _, db := range databases {
		info := fmt.Sprintf("Engine: %s, Status: %s, Endpoint: %s, Security Groups: %s",
			db.Engine, db.Status, db.Endpoint, strings.Join(db.SecurityGroups, ", "))
		if err := sheet.Row("Database", db.Name, db.ID, info); err != nil {
			return err
		}
	}
	return nil
}
